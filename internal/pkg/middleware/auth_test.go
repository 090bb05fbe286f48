package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-service/internal/pkg/auth"
)

func authTestRouter(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokens("middleware-test-secret", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", RequireAuth(tokens), func(c *gin.Context) {
		claims := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
	})
	router.GET("/managers", RequireAuth(tokens), RequireManager(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, tokens
}

// TestRequireAuth tests bearer token enforcement
func TestRequireAuth(t *testing.T) {
	router, tokens := authTestRouter(t)

	// No token
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token
	token, err := tokens.Issue("user-9", "u@x.y", "operator", "op-1")
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-9")
}

// TestRequireManager tests role gating on top of authentication
func TestRequireManager(t *testing.T) {
	router, tokens := authTestRouter(t)

	operatorToken, err := tokens.Issue("user-1", "o@x.y", "operator", "op-1")
	require.NoError(t, err)
	managerToken, err := tokens.Issue("user-2", "m@x.y", "supervisor", "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/managers", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/managers", nil)
	req.Header.Set("Authorization", "Bearer "+managerToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
