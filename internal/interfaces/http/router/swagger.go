package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// MountSwagger serves the registered OpenAPI document and its UI under /swagger.
// The document itself is registered by importing the generated docs package.
func MountSwagger(engine *gin.Engine, guards ...gin.HandlerFunc) {
	handlers := make([]gin.HandlerFunc, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	engine.GET("/swagger/*any", append(handlers, ginSwagger.WrapHandler(swaggerFiles.Handler))...)
}
