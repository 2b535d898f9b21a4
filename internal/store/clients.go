package store

import (
	"context"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type clientRepo struct {
	col *mongo.Collection
}

func (r *clientRepo) Create(ctx context.Context, c *models.Client) error {
	ensureID(&c.ID)
	return insert(ctx, r.col, c)
}

func (r *clientRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Client, error) {
	return findOne[models.Client](ctx, r.col, bson.M{"_id": id})
}

func (r *clientRepo) List(ctx context.Context, f ClientFilter) ([]models.Client, int64, error) {
	var clauses []bson.M
	if f.Query != "" {
		clauses = append(clauses, bson.M{"name": containsRegex(f.Query)})
	}
	if f.Active != nil {
		clauses = append(clauses, bson.M{"active": *f.Active})
	}
	return findPage[models.Client](ctx, r.col, and(clauses), f.Page, bson.D{{Key: "name", Value: 1}})
}

func (r *clientRepo) Update(ctx context.Context, c *models.Client) error {
	return replaceByID(ctx, r.col, c.ID, c)
}

func (r *clientRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

type diseaseAreaRepo struct {
	col *mongo.Collection
}

func (r *diseaseAreaRepo) Create(ctx context.Context, d *models.DiseaseArea) error {
	ensureID(&d.ID)
	return insert(ctx, r.col, d)
}

func (r *diseaseAreaRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.DiseaseArea, error) {
	return findOne[models.DiseaseArea](ctx, r.col, bson.M{"_id": id})
}

func (r *diseaseAreaRepo) FindBySlug(ctx context.Context, slug string) (*models.DiseaseArea, error) {
	return findOne[models.DiseaseArea](ctx, r.col, bson.M{"slug": slug})
}

func (r *diseaseAreaRepo) List(ctx context.Context, f DiseaseAreaFilter) ([]models.DiseaseArea, error) {
	filter := bson.M{}
	if f.Active != nil {
		filter["active"] = *f.Active
	}
	return findAll[models.DiseaseArea](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *diseaseAreaRepo) Update(ctx context.Context, d *models.DiseaseArea) error {
	return replaceByID(ctx, r.col, d.ID, d)
}

func (r *diseaseAreaRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}
