package store

import (
	"context"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type responseRepo struct {
	col *mongo.Collection
}

func (r *responseRepo) Create(ctx context.Context, resp *models.SurveyResponse) error {
	ensureID(&resp.ID)
	return insert(ctx, r.col, resp)
}

func (r *responseRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.SurveyResponse, error) {
	return findOne[models.SurveyResponse](ctx, r.col, bson.M{"_id": id})
}

func (r *responseRepo) FindByCampaignHcp(ctx context.Context, campaignHcpID primitive.ObjectID) (*models.SurveyResponse, error) {
	return findOne[models.SurveyResponse](ctx, r.col, bson.M{"campaignHcpId": campaignHcpID})
}

func (r *responseRepo) filter(f ResponseFilter) bson.M {
	clauses := campaignScope(nil, f.CampaignID, f.CampaignIDs)
	if f.HcpID != nil {
		clauses = append(clauses, bson.M{"hcpId": *f.HcpID})
	}
	if f.Status != "" {
		clauses = append(clauses, bson.M{"status": f.Status})
	}
	return and(clauses)
}

func (r *responseRepo) List(ctx context.Context, f ResponseFilter) ([]models.SurveyResponse, int64, error) {
	return findPage[models.SurveyResponse](ctx, r.col, r.filter(f), f.Page, bson.D{{Key: "startedAt", Value: -1}})
}

func (r *responseRepo) Update(ctx context.Context, resp *models.SurveyResponse, from models.ResponseStatus) error {
	return replaceIfStatus(ctx, r.col, resp.ID, string(from), resp)
}

func (r *responseRepo) CountByStatus(ctx context.Context, f ResponseFilter) (map[models.ResponseStatus]int64, error) {
	raw, err := countBy(ctx, r.col, r.filter(f), "status")
	if err != nil {
		return nil, err
	}
	out := make(map[models.ResponseStatus]int64, len(raw))
	for k, v := range raw {
		out[models.ResponseStatus(k)] = v
	}
	return out, nil
}

type nominationRepo struct {
	col *mongo.Collection
}

func (r *nominationRepo) CreateMany(ctx context.Context, items []models.NominationMatch) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]any, 0, len(items))
	for i := range items {
		ensureID(&items[i].ID)
		docs = append(docs, items[i])
	}
	_, err := r.col.InsertMany(ctx, docs)
	return writeErr(err)
}

func (r *nominationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NominationMatch, error) {
	return findOne[models.NominationMatch](ctx, r.col, bson.M{"_id": id})
}

func (r *nominationRepo) List(ctx context.Context, f NominationFilter) ([]models.NominationMatch, int64, error) {
	clauses := campaignScope(nil, f.CampaignID, f.CampaignIDs)
	if f.Status != "" {
		clauses = append(clauses, bson.M{"status": f.Status})
	}
	return findPage[models.NominationMatch](ctx, r.col, and(clauses), f.Page, bson.D{{Key: "createdAt", Value: -1}})
}

func (r *nominationRepo) Update(ctx context.Context, n *models.NominationMatch) error {
	return replaceByID(ctx, r.col, n.ID, n)
}

func (r *nominationRepo) TopNominees(ctx context.Context, campaignID primitive.ObjectID, limit int64) ([]models.NomineeCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"campaignId":   campaignID,
			"status":       models.NominationConfirmed,
			"matchedHcpId": bson.M{"$exists": true},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$matchedHcpId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	cursor, err := r.col.Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]models.NomineeCount, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
