package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/pkg/logger"
)

// SessionChecker reports whether an issued token id is still live.
type SessionChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

// Service encapsulates user-related business logic
type Service struct {
	repo     UserRepository
	policy   authz.Policy
	sessions SessionChecker
	// issuer is the iss claim of locally issued tokens. Claims with any
	// other issuer come from the SSO provider.
	issuer string
	cost   int
}

func NewService(r UserRepository, policy authz.Policy, sessions SessionChecker, issuer string) *Service {
	return &Service{repo: r, policy: policy, sessions: sessions, issuer: issuer, cost: bcrypt.DefaultCost}
}

// Register creates a contributor account. Allow-listed emails start as admin.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Registration failed", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("User already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Internal("Registration failed", err)
	}
	u := &models.User{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleUser}
	if s.policy.IsAdmin(email) {
		u.Role = models.RoleAdmin
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Internal("Registration failed", err)
	}
	logger.Infof("registered user %s (%s)", u.ID, u.Role)
	return u, nil
}

// Authenticate checks email and password and re-asserts the admin role.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Login failed", err)
	}
	if u == nil || u.PasswordHash == "" {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}
	return s.EnsureRole(ctx, u)
}

// EnsureRole promotes an allow-listed user still stored as a contributor.
// It never demotes.
func (s *Service) EnsureRole(ctx context.Context, u *models.User) (*models.User, error) {
	if u.Role == models.RoleAdmin || !s.policy.IsAdmin(u.Email) {
		return u, nil
	}
	if err := s.repo.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	logger.Infof("promoted allow-listed user %s to admin", u.ID)
	u.Role = models.RoleAdmin
	return u, nil
}

// ResolveClaims maps verified token claims to a user. Local tokens must
// belong to a live session; SSO claims are linked to an account by email.
func (s *Service) ResolveClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	iss, _ := claims["iss"].(string)
	if iss != s.issuer {
		return s.UpsertFromClaims(ctx, claims)
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return nil, apperr.Unauthorized("Please authenticate")
	}
	if s.sessions != nil {
		ok, err := s.sessions.IsActive(ctx, jti)
		if err != nil {
			return nil, apperr.Internal("Server error", err)
		}
		if !ok {
			return nil, apperr.Unauthorized("Please authenticate")
		}
	}
	u, err := s.repo.GetByID(ctx, sub)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	if u == nil {
		return nil, apperr.Unauthorized("Please authenticate")
	}
	return u, nil
}

// UpsertFromClaims creates or links a user from SSO claims. Claims without
// an email yield nil. Accounts are linked by email, so the identity provider
// must have verified it.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" || email == "" {
		return nil, nil
	}
	if !emailVerified(claims) {
		return nil, apperr.Unauthorized("SSO email address is not verified")
	}
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	u, err := s.repo.UpsertByEmail(ctx, &models.User{Sub: sub, Email: email, Name: name})
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return u, nil
}

func emailVerified(claims map[string]interface{}) bool {
	switch v := claims["email_verified"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// GetByID returns nil, nil for unknown ids.
func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SaveScore(ctx context.Context, id string, state models.ScoreState) error {
	return s.repo.SaveScore(ctx, id, state)
}
