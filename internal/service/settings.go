package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kol-campaign-api-server/internal/cache"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"
	"kol-campaign-api-server/internal/validation"
)

const settingsCacheKey = "settings:global"

// SettingsService reads and writes the single global settings document.
type SettingsService struct {
	store    store.Settings
	cache    cache.Cache
	ttl      time.Duration
	defaults models.Settings
	now      func() time.Time
}

// Current returns the effective settings with secrets in clear. Internal use only.
func (s *SettingsService) Current(ctx context.Context) (models.Settings, error) {
	var cached models.Settings
	if ok, err := s.cache.GetJSON(ctx, settingsCacheKey, &cached); err == nil && ok {
		return cached, nil
	}

	stored, err := s.store.Get(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		stored = &models.Settings{}
	case err != nil:
		return models.Settings{}, err
	}
	out := stored.WithDefaults(s.defaults)
	if stored.ID == "" {
		// never saved: MaxReminders is only meaningful from a saved document
		out.Email.MaxReminders = s.defaults.Email.MaxReminders
	}
	_ = s.cache.SetJSON(ctx, settingsCacheKey, out, s.ttl)
	return out, nil
}

// Get returns the settings for display, with the SMTP password masked.
func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return cur.Masked(), nil
}

// Update replaces the settings. Sending the mask back keeps the stored password.
func (s *SettingsService) Update(ctx context.Context, actor Actor, in models.Settings) (models.Settings, error) {
	if actor.Role != models.RoleSuperAdmin {
		return models.Settings{}, ErrForbidden
	}
	cur, err := s.Current(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	if in.Email.SMTPPassword == models.MaskedSecret {
		in.Email.SMTPPassword = cur.Email.SMTPPassword
	}
	if err := validation.Struct(in); err != nil {
		return models.Settings{}, err
	}

	in.ID = models.SettingsID
	in.UpdatedBy = &actor.UserID
	in.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, &in); err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	_ = s.cache.Delete(ctx, settingsCacheKey)
	return in.Masked(), nil
}
