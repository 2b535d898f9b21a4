package database

import (
	"context"
	"testing"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedSuperAdmin(t *testing.T) {
	auth.HashCost = bcrypt.MinCost
	ctx := context.Background()
	s := storetest.New()
	cfg := config.SeedConfig{AdminEmail: "root@example.com", AdminPassword: "s3cret-pass", AdminName: "Root"}

	created, err := SeedSuperAdmin(ctx, s.Users, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, created)

	u, err := s.Users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, u.Role)
	assert.True(t, auth.CheckPasswordHash("s3cret-pass", u.PasswordHash))

	created, err = SeedSuperAdmin(ctx, s.Users, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSeedSuperAdminNeedsPassword(t *testing.T) {
	_, err := SeedSuperAdmin(context.Background(), storetest.New().Users, config.SeedConfig{AdminEmail: "x@example.com"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSeedDiseaseAreasIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	added, err := SeedDiseaseAreas(ctx, s.DiseaseAreas, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultDiseaseAreas), added)

	added, err = SeedDiseaseAreas(ctx, s.DiseaseAreas, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, added)
}
