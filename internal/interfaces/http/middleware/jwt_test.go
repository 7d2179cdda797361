package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{Secret: "test-secret-test-secret", Issuer: "ledger-test"})
}

func issue(t *testing.T, svc *auth.JWTService, userID uuid.UUID, ttl time.Duration, perms ...string) string {
	t.Helper()
	token, err := svc.IssueToken(auth.IssueTokenInput{UserID: userID, Username: "clerk", Permissions: perms, TTL: ttl})
	require.NoError(t, err)
	return token
}

func expiredToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ledger-test",
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
		UserID: userID.String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret"))
	require.NoError(t, err)
	return token
}

// authRouter echoes the actor the middleware resolved
func authRouter(cfg JWTMiddlewareConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), JWTAuthMiddlewareWithConfig(cfg))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": GetActorID(c).String(), "anonymous": c.GetBool(AnonymousKey)})
	})
	r.GET("/api/v1/accounts", handlers...)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newJWTService()
	user := uuid.New()
	other := auth.NewJWTService(config.JWTConfig{Secret: "another-secret-entirely", Issuer: "ledger-test"})

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{name: "valid token", header: "Bearer " + issue(t, svc, user, time.Minute), status: http.StatusOK},
		{name: "missing header", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "garbage", header: "Bearer not.a.jwt", status: http.StatusUnauthorized, code: dto.ErrCodeTokenInvalid},
		{name: "wrong key", header: "Bearer " + issue(t, other, user, time.Minute), status: http.StatusUnauthorized, code: dto.ErrCodeTokenInvalid},
		{name: "expired", header: "Bearer " + expiredToken(t, user), status: http.StatusUnauthorized, code: dto.ErrCodeTokenExpired},
	}

	r := authRouter(DefaultJWTConfig(svc))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				info := decodeError(t, w)
				assert.Equal(t, tt.code, info.Code)
				assert.NotEmpty(t, info.RequestID)
				return
			}
			assert.Contains(t, w.Body.String(), user.String())
		})
	}

	t.Run("skip paths need no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestJWTAuthMiddleware_Optional(t *testing.T) {
	svc := newJWTService()
	cfg := DefaultJWTConfig(svc)
	cfg.Required = false
	r := authRouter(cfg)

	t.Run("anonymous without header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"actor":"`+uuid.Nil.String()+`","anonymous":true}`, w.Body.String())
	})

	t.Run("actor header names the actor", func(t *testing.T) {
		actor := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.Header.Set(ActorHeader, actor.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Contains(t, w.Body.String(), actor.String())
	})

	t.Run("a bad token is still rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.Header.Set(AuthHeaderKey, "Bearer junk")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	svc := newJWTService()
	user := uuid.New()

	tests := []struct {
		name   string
		perms  []string
		status int
	}{
		{"has permission", []string{auth.PermissionPost}, http.StatusOK},
		{"admin grants all", []string{auth.PermissionAdmin}, http.StatusOK},
		{"missing permission", []string{auth.PermissionRead}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}

	r := authRouter(DefaultJWTConfig(svc), RequirePermission(auth.PermissionPost, auth.PermissionApprove))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			req.Header.Set(AuthHeaderKey, "Bearer "+issue(t, svc, user, time.Minute, tt.perms...))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Code)
			}
		})
	}

	t.Run("anonymous passes when tokens are optional", func(t *testing.T) {
		cfg := DefaultJWTConfig(svc)
		cfg.Required = false
		r := authRouter(cfg, RequirePermission(auth.PermissionPost))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no claims at all", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", RequirePermission(auth.PermissionRead), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
