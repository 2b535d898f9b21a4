package service

import (
	"context"
	"time"

	"kol-campaign-api-server/internal/cache"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dashboardTTL = 60 * time.Second

type DashboardService struct {
	store *store.Store
	cache cache.Cache
	now   func() time.Time
	log   *zap.Logger
}

type DashboardStats struct {
	Campaigns      map[models.CampaignStatus]int64 `json:"campaigns"`
	Responses      map[models.ResponseStatus]int64 `json:"responses"`
	HcpTotal       int64                           `json:"hcpTotal"`
	CompletionRate float64                         `json:"completionRate"`
	Payments       []models.PaymentTotal           `json:"payments"`
	GeneratedAt    time.Time                       `json:"generatedAt"`
}

// Stats aggregates the dashboard for the actor's tenant scope.
func (s *DashboardService) Stats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	key := "dashboard:all"
	if !actor.IsStaff() {
		if actor.ClientID == nil {
			return emptyStats(s.now()), nil
		}
		key = "dashboard:client:" + actor.ClientID.Hex()
	}
	var cached DashboardStats
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	} else if err != nil {
		s.log.Warn("dashboard cache read", zap.Error(err))
	}

	var ids []primitive.ObjectID
	if !actor.IsStaff() {
		var err error
		if ids, err = s.store.Campaigns.IDsByClient(ctx, *actor.ClientID); err != nil {
			return nil, err
		}
	}

	out := emptyStats(s.now())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.store.Campaigns.CountByStatus(gctx, actor.ClientID)
		if err == nil {
			out.Campaigns = counts
		}
		return err
	})
	g.Go(func() error {
		counts, err := s.store.Responses.CountByStatus(gctx, store.ResponseFilter{CampaignIDs: ids})
		if err == nil {
			out.Responses = counts
		}
		return err
	})
	g.Go(func() error {
		var n int64
		var err error
		if actor.IsStaff() {
			n, err = s.store.Hcps.Count(gctx)
		} else {
			n, err = s.store.CampaignHcps.CountHcps(gctx, ids)
		}
		out.HcpTotal = n
		return err
	})
	g.Go(func() error {
		totals, err := s.store.Payments.Totals(gctx, store.PaymentFilter{CampaignIDs: ids})
		if err == nil {
			out.Payments = totals
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var started int64
	for _, n := range out.Responses {
		started += n
	}
	if started > 0 {
		done := out.Responses[models.ResponseCompleted] + out.Responses[models.ResponseFlagged]
		out.CompletionRate = float64(done) / float64(started)
	}

	if err := s.cache.SetJSON(ctx, key, out, dashboardTTL); err != nil {
		s.log.Warn("dashboard cache write", zap.Error(err))
	}
	return out, nil
}

func emptyStats(now time.Time) *DashboardStats {
	return &DashboardStats{
		Campaigns:   map[models.CampaignStatus]int64{},
		Responses:   map[models.ResponseStatus]int64{},
		Payments:    []models.PaymentTotal{},
		GeneratedAt: now.UTC(),
	}
}
