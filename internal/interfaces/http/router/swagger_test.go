package router

import (
	"net/http"
	"testing"

	_ "github.com/erp/ledger/docs"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountSwagger(t *testing.T) {
	engine := gin.New()
	MountSwagger(engine, middleware.SwaggerProtection(middleware.SwaggerConfig{Enabled: true}, nil))

	w := serveRoute(engine, http.MethodGet, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"Ledger API"`)
	assert.Contains(t, body, `"/api/v1"`)
	assert.Contains(t, body, `"/reconciliations/{id}/auto-match"`)
	assert.Contains(t, body, `"BearerAuth"`)

	t.Run("disabled documentation is hidden", func(t *testing.T) {
		hidden := gin.New()
		MountSwagger(hidden, middleware.SwaggerProtection(middleware.SwaggerConfig{}, nil))
		assert.Equal(t, http.StatusNotFound, serveRoute(hidden, http.MethodGet, "/swagger/doc.json").Code)
	})
}
