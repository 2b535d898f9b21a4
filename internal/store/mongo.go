package store

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	ColUsers        = "users"
	ColClients      = "clients"
	ColDiseaseAreas = "disease_areas"
	ColHcps         = "hcps"
	ColCampaigns    = "campaigns"
	ColCampaignHcps = "campaign_hcps"
	ColResponses    = "survey_responses"
	ColNominations  = "nomination_matches"
	ColPayments     = "payments"
	ColSettings     = "settings"
)

// NewMongo wires every repository to its collection in db.
func NewMongo(db *mongo.Database) *Store {
	return &Store{
		Users:        &userRepo{col: db.Collection(ColUsers)},
		Clients:      &clientRepo{col: db.Collection(ColClients)},
		DiseaseAreas: &diseaseAreaRepo{col: db.Collection(ColDiseaseAreas)},
		Hcps:         &hcpRepo{col: db.Collection(ColHcps)},
		Campaigns:    &campaignRepo{col: db.Collection(ColCampaigns)},
		CampaignHcps: &campaignHcpRepo{col: db.Collection(ColCampaignHcps)},
		Responses:    &responseRepo{col: db.Collection(ColResponses)},
		Nominations:  &nominationRepo{col: db.Collection(ColNominations)},
		Payments:     &paymentRepo{col: db.Collection(ColPayments)},
		Settings:     &settingsRepo{col: db.Collection(ColSettings)},
	}
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	var doc T
	err := col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// findPage returns one page of matches plus the total match count.
func findPage[T any](ctx context.Context, col *mongo.Collection, filter bson.M, page Page, sort bson.D) ([]T, int64, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(sort)
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	items, err := findAll[T](ctx, col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func insert(ctx context.Context, col *mongo.Collection, doc any) error {
	_, err := col.InsertOne(ctx, doc)
	return writeErr(err)
}

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func replaceByID(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return writeErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id primitive.ObjectID) error {
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// replaceIfStatus is the optimistic update used for status machines.
func replaceIfStatus(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, status string, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id, "status": status}, doc)
	if err != nil {
		return writeErr(err)
	}
	if res.MatchedCount == 0 {
		if n, cerr := col.CountDocuments(ctx, bson.M{"_id": id}); cerr == nil && n == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	return nil
}

func writeErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func containsRegex(q string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
}

func prefixRegex(p string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(p), Options: "i"}
}

// and collapses clauses into a single filter document.
func and(clauses []bson.M) bson.M {
	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}

func campaignScope(clauses []bson.M, one *primitive.ObjectID, many []primitive.ObjectID) []bson.M {
	if one != nil {
		clauses = append(clauses, bson.M{"campaignId": *one})
	}
	if many != nil {
		clauses = append(clauses, bson.M{"campaignId": bson.M{"$in": many}})
	}
	return clauses
}

// countBy groups the filtered documents by field and counts each group.
func countBy(ctx context.Context, col *mongo.Collection, match bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
