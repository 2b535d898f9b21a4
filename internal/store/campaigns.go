package store

import (
	"context"
	"errors"
	"time"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type campaignRepo struct {
	col *mongo.Collection
}

func (r *campaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	ensureID(&c.ID)
	return insert(ctx, r.col, c)
}

func (r *campaignRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return findOne[models.Campaign](ctx, r.col, bson.M{"_id": id})
}

func (r *campaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, int64, error) {
	var clauses []bson.M
	if f.Status != "" {
		clauses = append(clauses, bson.M{"status": f.Status})
	}
	if f.ClientID != nil {
		clauses = append(clauses, bson.M{"clientId": *f.ClientID})
	}
	if f.Query != "" {
		re := containsRegex(f.Query)
		clauses = append(clauses, bson.M{"$or": bson.A{bson.M{"name": re}, bson.M{"code": re}}})
	}
	return findPage[models.Campaign](ctx, r.col, and(clauses), f.Page, bson.D{{Key: "createdAt", Value: -1}})
}

func (r *campaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	return replaceByID(ctx, r.col, c.ID, c)
}

func (r *campaignRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *campaignRepo) CountByStatus(ctx context.Context, clientID *primitive.ObjectID) (map[models.CampaignStatus]int64, error) {
	match := bson.M{}
	if clientID != nil {
		match["clientId"] = *clientID
	}
	raw, err := countBy(ctx, r.col, match, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[models.CampaignStatus]int64, len(raw))
	for k, v := range raw {
		out[models.CampaignStatus(k)] = v
	}
	return out, nil
}

func (r *campaignRepo) CountByClient(ctx context.Context, clientID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"clientId": clientID})
}

func (r *campaignRepo) IDsByClient(ctx context.Context, clientID primitive.ObjectID) ([]primitive.ObjectID, error) {
	rows, err := findAll[struct {
		ID primitive.ObjectID `bson:"_id"`
	}](ctx, r.col, bson.M{"clientId": clientID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

type campaignHcpRepo struct {
	col *mongo.Collection
}

func (r *campaignHcpRepo) Add(ctx context.Context, items []models.CampaignHcp) ([]models.CampaignHcp, error) {
	added := make([]models.CampaignHcp, 0, len(items))
	for _, item := range items {
		ensureID(&item.ID)
		err := insert(ctx, r.col, item)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, err
		}
		added = append(added, item)
	}
	return added, nil
}

func (r *campaignHcpRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CampaignHcp, error) {
	return findOne[models.CampaignHcp](ctx, r.col, bson.M{"_id": id})
}

func (r *campaignHcpRepo) FindByToken(ctx context.Context, token string) (*models.CampaignHcp, error) {
	return findOne[models.CampaignHcp](ctx, r.col, bson.M{"surveyToken": token})
}

func (r *campaignHcpRepo) Find(ctx context.Context, campaignID, hcpID primitive.ObjectID) (*models.CampaignHcp, error) {
	return findOne[models.CampaignHcp](ctx, r.col, bson.M{"campaignId": campaignID, "hcpId": hcpID})
}

func (r *campaignHcpRepo) ListByCampaign(ctx context.Context, campaignID primitive.ObjectID) ([]models.CampaignHcp, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return findAll[models.CampaignHcp](ctx, r.col, bson.M{"campaignId": campaignID}, opts)
}

func (r *campaignHcpRepo) CountByCampaign(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"campaignId": campaignID})
}

func (r *campaignHcpRepo) CountByHcp(ctx context.Context, hcpID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"hcpId": hcpID})
}

func (r *campaignHcpRepo) CountHcps(ctx context.Context, campaignIDs []primitive.ObjectID) (int64, error) {
	if len(campaignIDs) == 0 {
		return 0, nil
	}
	ids, err := r.col.Distinct(ctx, "hcpId", bson.M{"campaignId": bson.M{"$in": campaignIDs}})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (r *campaignHcpRepo) Remove(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *campaignHcpRepo) MarkEmailSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "emailSentAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"emailSentAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *campaignHcpRepo) RecordReminder(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastReminderAt": at},
		"$inc": bson.M{"reminderCount": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
