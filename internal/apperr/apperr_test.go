package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/x", func(c *gin.Context) { Respond(c, err) })
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func TestRespondStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Forbidden("Access denied"), http.StatusForbidden},
		{NotFound("App not found"), http.StatusNotFound},
		{Conflict("exists"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("x")), http.StatusNotFound},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, serve(t, tc.err).Code, tc.err.Error())
	}
}

func TestRespondHidesInternalDetail(t *testing.T) {
	w := serve(t, Internal("Database error", errors.New("E11000 duplicate key on appnames")))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "E11000")
	require.Contains(t, w.Body.String(), "Database error")
}

func TestRespondValidationFields(t *testing.T) {
	w := serve(t, Validation("Validation failed", FieldError{Field: "name", Message: "name is required"}))
	var body struct {
		Error  string       `json:"error"`
		Errors []FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Validation failed", body.Error)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "name", body.Errors[0].Field)
}

func TestFromBinding(t *testing.T) {
	type req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	g := gin.New()
	g.POST("/r", func(c *gin.Context) {
		var r req
		if err := c.ShouldBindJSON(&r); err != nil {
			Respond(c, FromBinding(err))
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/r", strings.NewReader(`{"email":"nope","password":"123"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Please enter a valid email")
	require.Contains(t, w.Body.String(), "password must be at least 6 characters long")

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/r", strings.NewReader(`{not json`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid request body")
}
