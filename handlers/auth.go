package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/sessions"
	"github.com/appdedupe/appdedupe/internal/tokens"
	"github.com/appdedupe/appdedupe/internal/users"
	"github.com/appdedupe/appdedupe/pkg/logger"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ssoRequest is an authorization code returned by the SSO provider.
type ssoRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirectUri" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	issuer      *tokens.Issuer
	// sso is nil unless an SSO provider is configured.
	sso      middleware.Verifier
	keycloak config.KeycloakConfig
	client   *http.Client
}

func NewAuthHandler(u *users.Service, s *sessions.Service, issuer *tokens.Issuer) *AuthHandler {
	return &AuthHandler{usersSvc: u, sessionsSvc: s, issuer: issuer, client: http.DefaultClient}
}

// EnableSSO turns on the authorization code login against the configured realm.
func (h *AuthHandler) EnableSSO(cfg config.KeycloakConfig, ver middleware.Verifier) {
	h.keycloak = cfg
	h.sso = ver
}

// Register routes under /users. protected authenticates the caller for /me
// and /logout.
func (h *AuthHandler) Register(rg *gin.RouterGroup, protected ...gin.HandlerFunc) {
	u := rg.Group("/users")
	u.POST("/register", h.RegisterUser)
	u.POST("/login", h.Login)
	if h.sso != nil {
		u.POST("/login/sso", h.LoginSSO)
	}
	authed := u.Group("", protected...)
	authed.GET("/me", h.Me)
	authed.POST("/logout", h.Logout)
}

func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.FromBinding(err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apperr.Respond(c, apperr.Validation("Validation failed", apperr.FieldError{Field: "name", Message: "name is required"}))
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	token, err := h.issue(c.Request.Context(), u)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.FromBinding(err))
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	token, err := h.issue(c.Request.Context(), u)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}

// LoginSSO exchanges an authorization code at the provider, verifies the
// returned ID token and issues a local token for the linked account.
func (h *AuthHandler) LoginSSO(c *gin.Context) {
	var req ssoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.FromBinding(err))
		return
	}
	ctx := c.Request.Context()
	tr, err := h.exchangeCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		logger.Warnf("sso code exchange failed (redirect_uri=%q): %v", req.RedirectURI, err)
		apperr.Respond(c, apperr.Unauthorized("Authentication failed"))
		return
	}
	tok, err := h.sso.Verify(ctx, tr.IDToken)
	if err != nil {
		logger.Warnf("sso id token rejected: %v", err)
		apperr.Respond(c, apperr.Unauthorized("Authentication failed"))
		return
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		apperr.Respond(c, apperr.Unauthorized("Authentication failed"))
		return
	}
	u, err := h.usersSvc.UpsertFromClaims(ctx, claims)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if u == nil {
		apperr.Respond(c, apperr.Unauthorized("ID token carries no email"))
		return
	}
	if u, err = h.usersSvc.EnsureRole(ctx, u); err != nil {
		apperr.Respond(c, err)
		return
	}
	token, err := h.issue(ctx, u)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}

// Me returns the caller, promoting them first when newly allow-listed.
func (h *AuthHandler) Me(c *gin.Context) {
	u := middleware.UserFrom(c)
	if u == nil {
		apperr.Respond(c, apperr.Unauthorized("Please authenticate"))
		return
	}
	u, err := h.usersSvc.EnsureRole(c.Request.Context(), u)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Logout ends the token's session and blacklists the raw token until it
// would have expired anyway.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		apperr.Respond(c, apperr.Unauthorized("Please authenticate"))
		return
	}
	if iss, _ := claims["iss"].(string); iss == h.issuer.Name() {
		if jti, _ := claims["jti"].(string); jti != "" {
			if err := h.sessionsSvc.DeleteSession(ctx, jti); err != nil {
				apperr.Respond(c, apperr.Internal("Logout failed", err))
				return
			}
		}
	}
	if raw := middleware.RawToken(c); raw != "" {
		if ttl := remainingTTL(claims, time.Now()); ttl > 0 {
			if err := sessions.BlacklistAccessToken(ctx, raw, ttl); err != nil {
				apperr.Respond(c, apperr.Internal("Logout failed", err))
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// issue signs a token for u and records its id as a live session.
func (h *AuthHandler) issue(ctx context.Context, u *models.User) (string, error) {
	signed, claims, err := h.issuer.GenerateAccessToken(u)
	if err != nil {
		return "", apperr.Internal("Server error", err)
	}
	if _, err := h.sessionsSvc.CreateSession(ctx, claims.ID, u.ID, h.issuer.TTL()); err != nil {
		return "", apperr.Internal("Server error", err)
	}
	return signed, nil
}

// remainingTTL reads the exp claim. Numbers arrive as float64 or json.Number
// depending on how the claims were decoded.
func remainingTTL(claims map[string]interface{}, now time.Time) time.Duration {
	var exp int64
	switch v := claims["exp"].(type) {
	case float64:
		exp = int64(v)
	case int64:
		exp = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		exp = n
	default:
		return 0
	}
	return time.Unix(exp, 0).Sub(now)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

func (h *AuthHandler) exchangeCode(ctx context.Context, code, redirectURI string) (*tokenResponse, error) {
	tokenURL := strings.TrimRight(h.keycloak.URL, "/") + "/realms/" + h.keycloak.Realm + "/protocol/openid-connect/token"
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", h.keycloak.ClientID)
	form.Set("client_secret", h.keycloak.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	// Keycloak occasionally answers "Code not valid" to a code it has just
	// issued; one quick retry covers it.
	for attempt := 1; attempt <= 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "Code not valid") && attempt == 1 {
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
		}
		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, err
		}
		if tr.IDToken == "" {
			return nil, fmt.Errorf("token endpoint returned no id_token")
		}
		return &tr, nil
	}
	return nil, fmt.Errorf("token exchange failed after retries")
}
