package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hcp is a healthcare provider that can be invited to campaigns.
type Hcp struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FirstName      string               `bson:"firstName" json:"firstName"`
	LastName       string               `bson:"lastName" json:"lastName"`
	Email          string               `bson:"email" json:"email"`
	Specialty      string               `bson:"specialty" json:"specialty"`
	NPI            string               `bson:"npi,omitempty" json:"npi"`
	Location       Location             `bson:"location" json:"location"`
	DiseaseAreaIDs []primitive.ObjectID `bson:"diseaseAreaIds,omitempty" json:"diseaseAreaIds"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (h Hcp) FullName() string {
	return strings.TrimSpace(h.FirstName + " " + h.LastName)
}
