package store

import (
	"context"
	"strings"
	"time"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type hcpRepo struct {
	col *mongo.Collection
}

func (r *hcpRepo) Create(ctx context.Context, h *models.Hcp) error {
	ensureID(&h.ID)
	h.Email = strings.ToLower(strings.TrimSpace(h.Email))
	return insert(ctx, r.col, h)
}

func (r *hcpRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hcp, error) {
	return findOne[models.Hcp](ctx, r.col, bson.M{"_id": id})
}

func (r *hcpRepo) FindByEmail(ctx context.Context, email string) (*models.Hcp, error) {
	return findOne[models.Hcp](ctx, r.col, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *hcpRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Hcp, error) {
	if len(ids) == 0 {
		return []models.Hcp{}, nil
	}
	return findAll[models.Hcp](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *hcpRepo) List(ctx context.Context, f HcpFilter) ([]models.Hcp, int64, error) {
	var clauses []bson.M
	if f.Query != "" {
		re := containsRegex(f.Query)
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"firstName": re},
			bson.M{"lastName": re},
			bson.M{"email": re},
		}})
	}
	if f.Specialty != "" {
		clauses = append(clauses, bson.M{"specialty": f.Specialty})
	}
	if f.DiseaseAreaID != nil {
		clauses = append(clauses, bson.M{"diseaseAreaIds": *f.DiseaseAreaID})
	}
	sort := bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}
	return findPage[models.Hcp](ctx, r.col, and(clauses), f.Page, sort)
}

func (r *hcpRepo) FindByNamePrefixes(ctx context.Context, prefixes []string, limit int64) ([]models.Hcp, error) {
	if len(prefixes) == 0 || limit <= 0 {
		return []models.Hcp{}, nil
	}
	or := make(bson.A, 0, 2*len(prefixes))
	for _, p := range prefixes {
		re := prefixRegex(p)
		or = append(or, bson.M{"lastName": re}, bson.M{"firstName": re})
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}).
		SetLimit(limit)
	return findAll[models.Hcp](ctx, r.col, bson.M{"$or": or}, opts)
}

func (r *hcpRepo) Update(ctx context.Context, h *models.Hcp) error {
	h.Email = strings.ToLower(strings.TrimSpace(h.Email))
	return replaceByID(ctx, r.col, h.ID, h)
}

func (r *hcpRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *hcpRepo) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *hcpRepo) CountBySpecialty(ctx context.Context, specialty string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"specialty": specialty})
}

func (r *hcpRepo) UpdateSpecialty(ctx context.Context, from, to string) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"specialty": from},
		bson.M{"$set": bson.M{"specialty": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
