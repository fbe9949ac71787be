package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/sessions"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts exactly one token value.
type fakeVerifier struct {
	good string
	sub  string
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == f.good {
		return &fakeToken{data: map[string]interface{}{"sub": f.sub, "email": "test@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func goodVerifier() *fakeVerifier { return &fakeVerifier{good: "goodtoken", sub: "user1"} }

type fakeResolver struct {
	users map[string]*models.User
	err   error
}

func (f *fakeResolver) ResolveClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, _ := claims["sub"].(string)
	return f.users[sub], nil
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(goodVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serveGET(g, "/").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(goodVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, h := range []string{"BadHeader", "Bearer ", "Basic goodtoken"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", h)
		rw := httptest.NewRecorder()
		g.ServeHTTP(rw, req)
		require.Equal(t, http.StatusUnauthorized, rw.Code, h)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(goodVerifier()), func(c *gin.Context) {
		require.Equal(t, "goodtoken", RawToken(c))
		c.JSON(http.StatusOK, gin.H{"claims": ClaimsFrom(c)})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "user1", got["claims"]["sub"])
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	require.NoError(t, sessions.BlacklistAccessToken(context.Background(), "goodtoken", 5*time.Second))

	g := gin.New()
	g.GET("/", AuthMiddleware(goodVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestChain_FallsThroughVerifiers(t *testing.T) {
	ver := Chain(nil, &fakeVerifier{good: "a", sub: "from-a"}, &fakeVerifier{good: "b", sub: "from-b"})
	tok, err := ver.Verify(context.Background(), "b")
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "from-b", claims["sub"])

	_, err = ver.Verify(context.Background(), "c")
	require.Error(t, err)

	_, err = Chain().Verify(context.Background(), "a")
	require.Error(t, err)
}

func protected(res UserResolver, policy authz.Policy) *gin.Engine {
	g := gin.New()
	chain := []gin.HandlerFunc{AuthMiddleware(goodVerifier()), CurrentUser(res)}
	if policy != nil {
		chain = append(chain, RequireAdmin(policy))
	}
	chain = append(chain, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"email": UserFrom(c).Email}) })
	g.GET("/", chain...)
	return g
}

func authedGET(g http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestCurrentUser(t *testing.T) {
	res := &fakeResolver{users: map[string]*models.User{"user1": {ID: "user1", Email: "a@example.com"}}}
	rw := authedGET(protected(res, nil))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "a@example.com")

	rw = authedGET(protected(&fakeResolver{}, nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = authedGET(protected(&fakeResolver{err: apperr.Unauthorized("Session expired")}, nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "Session expired")
}

func TestRequireAdmin(t *testing.T) {
	policy := authz.NewAllowList([]string{"boss@example.com"})

	admin := &fakeResolver{users: map[string]*models.User{"user1": {ID: "user1", Email: " Boss@Example.com"}}}
	require.Equal(t, http.StatusOK, authedGET(protected(admin, policy)).Code)

	plain := &fakeResolver{users: map[string]*models.User{"user1": {ID: "user1", Email: "someone@example.com", Role: models.RoleAdmin}}}
	rw := authedGET(protected(plain, policy))
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Contains(t, rw.Body.String(), "Access denied")
}

func TestRequireAdmin_NoUser(t *testing.T) {
	g := gin.New()
	g.GET("/", RequireAdmin(authz.NewAllowList(nil)), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serveGET(g, "/").Code)
}
