package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ResponseService struct {
	store     *store.Store
	campaigns *CampaignService
	now       func() time.Time
}

// List restricts client users to their own campaigns.
func (s *ResponseService) List(ctx context.Context, actor Actor, f store.ResponseFilter) ([]models.SurveyResponse, int64, error) {
	ids, err := s.campaigns.scope(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	f.CampaignIDs = ids
	return s.store.Responses.List(ctx, f)
}

func (s *ResponseService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.SurveyResponse, error) {
	r, err := s.store.Responses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.campaigns.visible(ctx, actor, r.CampaignID); err != nil {
		return nil, err
	}
	return r, nil
}

// SetStatus flags or unflags a finished response.
func (s *ResponseService) SetStatus(ctx context.Context, id primitive.ObjectID, to models.ResponseStatus) (*models.SurveyResponse, error) {
	if !to.Valid() {
		return nil, invalid("status", "unknown response status %q", to)
	}
	r, err := s.store.Responses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := r.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	r.Status = to
	r.UpdatedAt = s.now().UTC()
	if err := s.store.Responses.Update(ctx, r, from); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, conflict("the response changed, reload and retry")
		}
		return nil, err
	}
	return r, nil
}

type PaymentService struct {
	store     *store.Store
	campaigns *CampaignService
	now       func() time.Time
}

func (s *PaymentService) List(ctx context.Context, f store.PaymentFilter) ([]models.Payment, int64, error) {
	return s.store.Payments.List(ctx, f)
}

func (s *PaymentService) Get(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return s.store.Payments.FindByID(ctx, id)
}

type PaymentStatusInput struct {
	Status    models.PaymentStatus `json:"status" binding:"required,oneof=pending approved paid failed cancelled"`
	Reference string               `json:"reference" binding:"max=200"`
}

// Transition moves a payment along its status machine. Marking it paid needs a reference.
func (s *PaymentService) Transition(ctx context.Context, id primitive.ObjectID, in PaymentStatusInput) (*models.Payment, error) {
	p, err := s.store.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := p.Status
	if !from.CanTransitionTo(in.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, in.Status)
	}
	now := s.now().UTC()
	if in.Reference != "" {
		p.Reference = in.Reference
	}
	if in.Status == models.PaymentPaid {
		if p.Reference == "" {
			return nil, invalid("reference", "is required when marking a payment paid")
		}
		p.PaidAt = &now
	}
	p.Status = in.Status
	p.UpdatedAt = now
	if err := s.store.Payments.Update(ctx, p, from); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, conflict("the payment changed, reload and retry")
		}
		return nil, err
	}
	return p, nil
}

type PaymentSummary struct {
	CampaignID primitive.ObjectID    `json:"campaignId"`
	Totals     []models.PaymentTotal `json:"totals"`
}

// Summary totals a campaign's payments per status and currency.
func (s *PaymentService) Summary(ctx context.Context, actor Actor, campaignID primitive.ObjectID) (*PaymentSummary, error) {
	if _, err := s.campaigns.visible(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	totals, err := s.store.Payments.Totals(ctx, store.PaymentFilter{CampaignID: &campaignID})
	if err != nil {
		return nil, err
	}
	return &PaymentSummary{CampaignID: campaignID, Totals: totals}, nil
}
