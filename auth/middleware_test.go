package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/livehub/realtime"
)

func middlewareTestRouter(t *testing.T, v *Validator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", Middleware(v), func(c *gin.Context) {
		resp := gin.H{}
		if userID, ok := c.Get(realtime.ContextKeyUserID); ok {
			resp["user_id"] = userID
		}
		if ghost, ok := c.Get(realtime.ContextKeyGhostSessionID); ok {
			resp["ghost_session"] = ghost
		}
		c.JSON(http.StatusOK, resp)
	})
	return router
}

func TestMiddlewareAcceptsBearerHeader(t *testing.T) {
	v := testValidator(t)
	router := middlewareTestRouter(t, v)

	token, err := v.MintUserToken(7, "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":7`)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	v := testValidator(t)
	router := middlewareTestRouter(t, v)

	token, err := v.MintGhostToken("lesson-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ghost_session":"lesson-42"`)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	router := middlewareTestRouter(t, testValidator(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	v := testValidator(t)
	router := middlewareTestRouter(t, v)

	token, err := v.MintUserToken(7, "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	router := middlewareTestRouter(t, testValidator(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
