package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/ratelimit"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// loginWindow is the period MaxLoginAttempts applies to, per IP and email.
const loginWindow = 15 * time.Minute

type UserService struct {
	store    *store.Store
	tokens   *auth.TokenManager
	limiter  ratelimit.Limiter
	settings *SettingsService
	now      func() time.Time
	log      *zap.Logger
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (s *UserService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	attempts := cfg.Security.MaxLoginAttempts
	res, err := s.limiter.Allow(ctx, "login:"+ip+":"+email, ratelimit.Limit{Rate: attempts, Period: loginWindow, Burst: attempts})
	if err != nil {
		// limiter outage must not lock everyone out
		s.log.Warn("login rate limiter unavailable", zap.Error(err))
	} else if !res.Allowed {
		return nil, &RateLimitError{RetryAfter: res.RetryAfterSeconds()}
	}

	user, err := s.store.Users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) || user.Status != models.UserActive {
		return nil, ErrUnauthorized
	}

	session := time.Duration(cfg.Security.SessionTimeoutMinutes) * time.Minute
	token, exp, err := s.tokens.GenerateFor(user, session)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	now := s.now().UTC()
	if err := s.store.Users.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("record last login", zap.String("user", user.ID.Hex()), zap.Error(err))
	}
	user.LastLoginAt = &now
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.store.Users.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	return s.store.Users.List(ctx, f)
}

type CreateUserInput struct {
	Email    string      `json:"email" binding:"required,email"`
	Name     string      `json:"name" binding:"required,max=200"`
	Password string      `json:"password" binding:"required,max=128"`
	Role     models.Role `json:"role" binding:"required,oneof=superadmin admin client"`
	ClientID string      `json:"clientId" binding:"omitempty,objectid"`
}

type UpdateUserInput struct {
	Name     *string            `json:"name" binding:"omitempty,max=200"`
	Password *string            `json:"password" binding:"omitempty,max=128"`
	Role     *models.Role       `json:"role" binding:"omitempty,oneof=superadmin admin client"`
	Status   *models.UserStatus `json:"status" binding:"omitempty,oneof=active inactive invited"`
	ClientID *string            `json:"clientId" binding:"omitempty,objectid"`
}

// Only superadmins may grant or hold staff roles on someone else's account.
func canManage(actor Actor, role models.Role) bool {
	return actor.Role == models.RoleSuperAdmin || role == models.RoleClient
}

func (s *UserService) Create(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	if !canManage(actor, in.Role) {
		return nil, ErrForbidden
	}
	if err := s.checkPassword(ctx, in.Password); err != nil {
		return nil, err
	}
	clientID, err := s.clientFor(ctx, in.Role, in.ClientID)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
		Status:       models.UserActive,
		ClientID:     clientID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("a user with email %s already exists", u.Email)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, actor Actor, id primitive.ObjectID, in UpdateUserInput) (*models.User, error) {
	u, err := s.store.Users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, u.Role) {
		return nil, ErrForbidden
	}
	if in.Role != nil && !canManage(actor, *in.Role) {
		return nil, ErrForbidden
	}
	if u.ID == actor.UserID && ((in.Role != nil && *in.Role != u.Role) || (in.Status != nil && *in.Status != models.UserActive)) {
		return nil, invalid("role", "you cannot demote or deactivate your own account")
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if in.Password != nil {
		if err := s.checkPassword(ctx, *in.Password); err != nil {
			return nil, err
		}
		if u.PasswordHash, err = auth.HashPassword(*in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if in.Role != nil || in.ClientID != nil {
		role := u.Role
		if in.Role != nil {
			role = *in.Role
		}
		raw := ""
		if in.ClientID != nil {
			raw = *in.ClientID
		} else if u.ClientID != nil && role == models.RoleClient {
			raw = u.ClientID.Hex()
		}
		if u.ClientID, err = s.clientFor(ctx, role, raw); err != nil {
			return nil, err
		}
		u.Role = role
	}

	u.UpdatedAt = s.now().UTC()
	if err := s.store.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) checkPassword(ctx context.Context, password string) error {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return err
	}
	if minLen := cfg.Security.PasswordMinLength; len(password) < minLen {
		return invalid("password", "must be at least %d characters", minLen)
	}
	return nil
}

// clientFor enforces that client users belong to an existing client and staff to none.
func (s *UserService) clientFor(ctx context.Context, role models.Role, raw string) (*primitive.ObjectID, error) {
	if role != models.RoleClient {
		if raw != "" {
			return nil, invalid("clientId", "only client users belong to a client")
		}
		return nil, nil
	}
	if raw == "" {
		return nil, invalid("clientId", "is required for client users")
	}
	id, err := ParseID("clientId", raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.FindByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("clientId", "client does not exist")
		}
		return nil, err
	}
	return &id, nil
}
