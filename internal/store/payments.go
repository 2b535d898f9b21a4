package store

import (
	"context"
	"fmt"

	"kol-campaign-api-server/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type paymentRepo struct {
	col *mongo.Collection
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	ensureID(&p.ID)
	return insert(ctx, r.col, p)
}

func (r *paymentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return findOne[models.Payment](ctx, r.col, bson.M{"_id": id})
}

func (r *paymentRepo) filter(f PaymentFilter) bson.M {
	clauses := campaignScope(nil, f.CampaignID, f.CampaignIDs)
	if f.HcpID != nil {
		clauses = append(clauses, bson.M{"hcpId": *f.HcpID})
	}
	if f.Status != "" {
		clauses = append(clauses, bson.M{"status": f.Status})
	}
	return and(clauses)
}

func (r *paymentRepo) List(ctx context.Context, f PaymentFilter) ([]models.Payment, int64, error) {
	return findPage[models.Payment](ctx, r.col, r.filter(f), f.Page, bson.D{{Key: "createdAt", Value: -1}})
}

func (r *paymentRepo) Update(ctx context.Context, p *models.Payment, from models.PaymentStatus) error {
	return replaceIfStatus(ctx, r.col, p.ID, string(from), p)
}

// Totals sums amounts server-side; they are stored as decimal strings so $toDecimal keeps precision.
func (r *paymentRepo) Totals(ctx context.Context, f PaymentFilter) ([]models.PaymentTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: r.filter(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "status", Value: "$status"}, {Key: "currency", Value: "$currency"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "amount", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$toDecimal", Value: "$amount"}}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.status", Value: 1}, {Key: "_id.currency", Value: 1}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key struct {
			Status   models.PaymentStatus `bson:"status"`
			Currency string               `bson:"currency"`
		} `bson:"_id"`
		Count  int64                `bson:"count"`
		Amount primitive.Decimal128 `bson:"amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	totals := make([]models.PaymentTotal, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("decode payment total %q: %w", row.Amount.String(), err)
		}
		totals = append(totals, models.PaymentTotal{
			Status:   row.Key.Status,
			Currency: row.Key.Currency,
			Count:    row.Count,
			Amount:   models.MoneyFrom(amount),
		})
	}
	return totals, nil
}

type settingsRepo struct {
	col *mongo.Collection
}

func (r *settingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	return findOne[models.Settings](ctx, r.col, bson.M{"_id": models.SettingsID})
}

func (r *settingsRepo) Save(ctx context.Context, s *models.Settings) error {
	s.ID = models.SettingsID
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": models.SettingsID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
