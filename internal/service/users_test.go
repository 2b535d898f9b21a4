package service

import (
	"context"
	"testing"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string, ratelimit.Limit) (*ratelimit.Result, error) {
	return &ratelimit.Result{Allowed: false, RetryAfter: 42 * time.Second}, nil
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	super := Actor{Role: models.RoleSuperAdmin}
	u, err := e.svc.Users.Create(e.ctx, super, CreateUserInput{
		Email: "Admin@Example.test", Name: "Ada", Password: "s3cret-pass", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@example.test", u.Email)

	res, err := e.svc.Users.Login(e.ctx, "admin@example.test", "s3cret-pass", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	require.NotNil(t, res.User.LastLoginAt)
	assert.Equal(t, e.clock.t, *res.User.LastLoginAt)

	_, err = e.svc.Users.Login(e.ctx, "admin@example.test", "wrong", "10.0.0.1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.svc.Users.Login(e.ctx, "ghost@example.test", "s3cret-pass", "10.0.0.1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	inactive := models.UserInactive
	_, err = e.svc.Users.Update(e.ctx, super, u.ID, UpdateUserInput{Status: &inactive})
	require.NoError(t, err)
	_, err = e.svc.Users.Login(e.ctx, "admin@example.test", "s3cret-pass", "10.0.0.1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginUsesSessionTimeout(t *testing.T) {
	e := newEnv(t)
	super := Actor{UserID: e.staff.UserID, Role: models.RoleSuperAdmin}
	_, err := e.svc.Users.Create(e.ctx, super, CreateUserInput{
		Email: "admin@example.test", Name: "Ada", Password: "s3cret-pass", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	cfg := models.DefaultSettings()
	cfg.Security.SessionTimeoutMinutes = 30
	_, err = e.svc.Settings.Update(e.ctx, super, cfg)
	require.NoError(t, err)

	res, err := e.svc.Users.Login(e.ctx, "admin@example.test", "s3cret-pass", "10.0.0.1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), res.ExpiresAt, 5*time.Second)
}

func TestLoginRateLimited(t *testing.T) {
	e := newEnv(t)
	e.svc.Users.limiter = denyAll{}
	_, err := e.svc.Users.Login(e.ctx, "a@b.test", "whatever", "10.0.0.1")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "42", rl.RetryAfter)
}

func TestCreateUserRules(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme Pharma")
	admin := e.staff

	_, err := e.svc.Users.Create(e.ctx, admin, CreateUserInput{Email: "x@y.test", Name: "X", Password: "long-enough", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.Users.Create(e.ctx, admin, CreateUserInput{Email: "x@y.test", Name: "X", Password: "short", Role: models.RoleClient, ClientID: acme.ID.Hex()})
	assertValidation(t, err, "password")

	_, err = e.svc.Users.Create(e.ctx, admin, CreateUserInput{Email: "x@y.test", Name: "X", Password: "long-enough", Role: models.RoleClient})
	assertValidation(t, err, "clientId")

	u, err := e.svc.Users.Create(e.ctx, admin, CreateUserInput{Email: "x@y.test", Name: "X", Password: "long-enough", Role: models.RoleClient, ClientID: acme.ID.Hex()})
	require.NoError(t, err)
	require.NotNil(t, u.ClientID)
	assert.Equal(t, acme.ID, *u.ClientID)
	assert.NotEmpty(t, u.PasswordHash)

	_, err = e.svc.Users.Create(e.ctx, admin, CreateUserInput{Email: "X@y.test", Name: "X2", Password: "long-enough", Role: models.RoleClient, ClientID: acme.ID.Hex()})
	assert.ErrorIs(t, err, ErrConflict)

	super := Actor{Role: models.RoleSuperAdmin}
	_, err = e.svc.Users.Create(e.ctx, super, CreateUserInput{Email: "staff@y.test", Name: "S", Password: "long-enough", Role: models.RoleAdmin, ClientID: acme.ID.Hex()})
	assertValidation(t, err, "clientId")
}

func TestUpdateUserRules(t *testing.T) {
	e := newEnv(t)
	super := Actor{Role: models.RoleSuperAdmin}
	target, err := e.svc.Users.Create(e.ctx, super, CreateUserInput{Email: "a@y.test", Name: "A", Password: "long-enough", Role: models.RoleAdmin})
	require.NoError(t, err)

	name := "Renamed"
	_, err = e.svc.Users.Update(e.ctx, e.staff, target.ID, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden, "admins cannot edit other staff")

	self := Actor{UserID: target.ID, Role: models.RoleSuperAdmin}
	role := models.RoleClient
	_, err = e.svc.Users.Update(e.ctx, self, target.ID, UpdateUserInput{Role: &role})
	assertValidation(t, err, "role")

	updated, err := e.svc.Users.Update(e.ctx, super, target.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, models.RoleAdmin, updated.Role)
}
