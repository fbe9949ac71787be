package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/stretchr/testify/require"
)

func newIssuer(secret string, ttl time.Duration) *Issuer {
	return NewIssuer(config.JWTConfig{Secret: secret, Issuer: "app-dedupe", AccessTokenTTL: ttl})
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	iss := newIssuer("test-secret-32-bytes-should-be-long-enough", 2*time.Minute)
	u := &models.User{ID: "user-123", Name: "Test User", Email: "test@example.com"}

	tokenStr, issued, err := iss.GenerateAccessToken(u)
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := iss.Parse(tokenStr)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, "test@example.com", claims.Email)
	require.Equal(t, issued.ID, claims.ID)
}

func TestGenerateAccessToken_UniqueIDs(t *testing.T) {
	iss := newIssuer("secret-secret-secret-secret-secret", time.Minute)
	u := &models.User{ID: "u1"}
	_, a, err := iss.GenerateAccessToken(u)
	require.NoError(t, err)
	_, b, err := iss.GenerateAccessToken(u)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestParse_Expired(t *testing.T) {
	iss := newIssuer("another-secret-32-bytes-longgggg", time.Minute)
	base := time.Now()
	iss.now = func() time.Time { return base }
	tokenStr, _, err := iss.GenerateAccessToken(&models.User{ID: "u2"})
	require.NoError(t, err)

	iss.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = iss.Parse(tokenStr)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecretFails(t *testing.T) {
	tokenStr, _, err := newIssuer("secret-one-32-bytes-xxxxxxxxxxxxxxxx", time.Minute).GenerateAccessToken(&models.User{ID: "u3"})
	require.NoError(t, err)
	_, err = newIssuer("different-secret-xxxxxxxxxxxxxxxx", time.Minute).Parse(tokenStr)
	require.Error(t, err)
}

func TestParse_WrongIssuerFails(t *testing.T) {
	secret := "shared-secret-32-bytes-xxxxxxxxxxxx"
	other := NewIssuer(config.JWTConfig{Secret: secret, Issuer: "someone-else", AccessTokenTTL: time.Minute})
	tokenStr, _, err := other.GenerateAccessToken(&models.User{ID: "u4"})
	require.NoError(t, err)
	_, err = newIssuer(secret, time.Minute).Parse(tokenStr)
	require.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := newIssuer("x", time.Minute).Parse("not.a.jwt")
	require.Error(t, err)
}

func TestParse_AlgNoneRejected(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tok := enc([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"u-none","iss":"app-dedupe","exp":9999999999}`)) + "."
	_, err := newIssuer("x", time.Minute).Parse(tok)
	require.Error(t, err)
}

func TestParse_TamperedPayload(t *testing.T) {
	iss := newIssuer("tamper-test-secret-32-bytes-xxxxxxx", 5*time.Minute)
	tokenStr, _, err := iss.GenerateAccessToken(&models.User{ID: "user-t"})
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))
	_, err = iss.Parse(strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerify_ExposesClaimsMap(t *testing.T) {
	iss := newIssuer("verify-secret-32-bytes-xxxxxxxxxxxx", time.Minute)
	tokenStr, issued, err := iss.GenerateAccessToken(&models.User{ID: "u5", Email: "v@example.com"})
	require.NoError(t, err)

	tok, err := iss.Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, tok.Claims(&m))
	require.Equal(t, "u5", m["sub"])
	require.Equal(t, issued.ID, m["jti"])
	require.Equal(t, "app-dedupe", m["iss"])

	_, err = iss.Verify(context.Background(), "garbage")
	require.Error(t, err)
}
