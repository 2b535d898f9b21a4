package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kol-campaign-api-server/internal/mailer"
	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/queue"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationService delivers queued invitation and reminder emails.
type NotificationService struct {
	store     *store.Store
	settings  *SettingsService
	newSender func(models.EmailSettings) mailer.Sender
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *zap.Logger
}

// Deliver is the queue handler. Jobs that can never succeed are wrapped with
// queue.ErrPermanent so the consumer dead-letters them instead of retrying.
func (s *NotificationService) Deliver(ctx context.Context, job models.EmailJob) error {
	if !job.Kind.Valid() {
		return fmt.Errorf("%w: unknown email kind %q", queue.ErrPermanent, job.Kind)
	}
	id, err := primitive.ObjectIDFromHex(job.CampaignHcpID)
	if err != nil {
		return fmt.Errorf("%w: bad campaignHcpId %q", queue.ErrPermanent, job.CampaignHcpID)
	}

	ch, err := s.store.CampaignHcps.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// unassigned after the job was queued
		s.skip(job, "assignment removed")
		return nil
	}
	if err != nil {
		return err
	}
	c, err := s.store.Campaigns.FindByID(ctx, ch.CampaignID)
	if err != nil {
		return permanentIfMissing(err)
	}
	hcp, err := s.store.Hcps.FindByID(ctx, ch.HcpID)
	if err != nil {
		return permanentIfMissing(err)
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return err
	}

	if reason, skip, err := s.shouldSkip(ctx, job.Kind, c, ch, cfg.Email); err != nil {
		return err
	} else if skip {
		s.skip(job, reason)
		return nil
	}

	data := mailer.TemplateData{
		HcpName:        hcp.FullName(),
		CampaignName:   c.Name,
		SurveyURL:      SurveyURL(cfg.System.SurveyBaseURL, ch.SurveyToken),
		Currency:       c.Currency,
		FromName:       cfg.Email.FromName,
		SupportEmail:   cfg.System.SupportEmail,
		ReminderNumber: ch.ReminderCount + 1,
	}
	if c.Honorarium.IsPositive() {
		data.Honorarium = c.Honorarium.StringFixed(2)
	}
	subject, text, html, err := mailer.Render(job.Kind, data)
	if err != nil {
		return fmt.Errorf("%w: render %s: %v", queue.ErrPermanent, job.Kind, err)
	}
	msg := mailer.Message{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		ReplyTo:     cfg.Email.ReplyTo,
		To:          hcp.Email,
		ToName:      hcp.FullName(),
		Subject:     subject,
		HTML:        html,
		Text:        text,
	}
	if err := s.newSender(cfg.Email).Send(ctx, msg); err != nil {
		s.metrics.EmailProcessed(string(job.Kind), "failed")
		return fmt.Errorf("send %s to %s: %w", job.Kind, hcp.Email, err)
	}

	now := s.now().UTC()
	switch job.Kind {
	case models.EmailInvitation:
		if _, err := s.store.CampaignHcps.MarkEmailSent(ctx, ch.ID, now); err != nil {
			return fmt.Errorf("mark invitation sent: %w", err)
		}
	case models.EmailReminder:
		if err := s.store.CampaignHcps.RecordReminder(ctx, ch.ID, now); err != nil {
			return fmt.Errorf("record reminder: %w", err)
		}
	}
	s.metrics.EmailProcessed(string(job.Kind), "sent")
	s.log.Info("email sent",
		zap.String("job", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("campaign", c.Code),
		zap.String("to", hcp.Email),
	)
	return nil
}

// shouldSkip re-checks eligibility at delivery time so duplicate or late jobs are harmless.
func (s *NotificationService) shouldSkip(ctx context.Context, kind models.EmailKind, c *models.Campaign, ch *models.CampaignHcp, es models.EmailSettings) (string, bool, error) {
	if c.Status != models.CampaignActive {
		return "campaign is " + string(c.Status), true, nil
	}
	if kind == models.EmailInvitation {
		if ch.EmailSentAt != nil {
			return "invitation already sent", true, nil
		}
		return "", false, nil
	}

	if !reminderDue(ch, es, s.now().UTC()) {
		return "reminder not due", true, nil
	}
	r, err := s.store.Responses.FindByCampaignHcp(ctx, ch.ID)
	switch {
	case err == nil && r.Status.Finished():
		return "survey already finished", true, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", false, err
	}
	return "", false, nil
}

func (s *NotificationService) skip(job models.EmailJob, reason string) {
	s.metrics.EmailProcessed(string(job.Kind), "skipped")
	s.log.Info("email skipped", zap.String("job", job.ID), zap.String("kind", string(job.Kind)), zap.String("reason", reason))
}

func permanentIfMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}
	return err
}
