package store

import (
	"context"
	"strings"
	"time"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepo struct {
	col *mongo.Collection
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	ensureID(&u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return insert(ctx, r.col, u)
}

func (r *userRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"_id": id})
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *userRepo) List(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	var clauses []bson.M
	if f.Role != "" {
		clauses = append(clauses, bson.M{"role": f.Role})
	}
	if f.ClientID != nil {
		clauses = append(clauses, bson.M{"clientId": *f.ClientID})
	}
	if f.Query != "" {
		re := containsRegex(f.Query)
		clauses = append(clauses, bson.M{"$or": bson.A{bson.M{"email": re}, bson.M{"name": re}}})
	}
	return findPage[models.User](ctx, r.col, and(clauses), f.Page, bson.D{{Key: "createdAt", Value: -1}})
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return replaceByID(ctx, r.col, u.ID, u)
}

func (r *userRepo) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}
