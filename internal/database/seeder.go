// internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.uber.org/zap"
)

// DefaultDiseaseAreas are created by SeedDiseaseAreas when their slug is missing.
var DefaultDiseaseAreas = []models.DiseaseArea{
	{Name: "Oncology", Slug: "oncology"},
	{Name: "Cardiology", Slug: "cardiology"},
	{Name: "Neurology", Slug: "neurology"},
	{Name: "Immunology", Slug: "immunology"},
	{Name: "Endocrinology", Slug: "endocrinology"},
	{Name: "Rare Diseases", Slug: "rare-diseases"},
}

// SeedSuperAdmin creates the superadmin account once. It reports whether a user was created.
func SeedSuperAdmin(ctx context.Context, users store.Users, cfg config.SeedConfig, log *zap.Logger) (bool, error) {
	_, err := users.FindByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		log.Info("super admin already exists, seeding skipped", zap.String("email", cfg.AdminEmail))
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if cfg.AdminPassword == "" {
		return false, errors.New("seed.adminPassword (SEED_ADMIN_PASSWORD) must be set to seed the super admin")
	}

	log.Info("super admin not found, seeding", zap.String("email", cfg.AdminEmail))
	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	superAdmin := &models.User{
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hashedPassword,
		Role:         models.RoleSuperAdmin,
		Status:       models.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, superAdmin); err != nil {
		return false, fmt.Errorf("create super admin: %w", err)
	}

	log.Info("super admin seeded", zap.String("id", superAdmin.ID.Hex()))
	return true, nil
}

// SeedDiseaseAreas inserts the default disease areas that do not exist yet and returns how many it added.
func SeedDiseaseAreas(ctx context.Context, areas store.DiseaseAreas, log *zap.Logger) (int, error) {
	added := 0
	for _, def := range DefaultDiseaseAreas {
		_, err := areas.FindBySlug(ctx, def.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return added, err
		}
		now := time.Now().UTC()
		area := def
		area.Active = true
		area.CreatedAt, area.UpdatedAt = now, now
		if err := areas.Create(ctx, &area); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return added, fmt.Errorf("seed disease area %s: %w", def.Slug, err)
		}
		added++
	}
	log.Info("disease areas seeded", zap.Int("added", added))
	return added, nil
}
