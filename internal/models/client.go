package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClientType string

const (
	ClientPharma  ClientType = "pharma"
	ClientBiotech ClientType = "biotech"
	ClientMedtech ClientType = "medtech"
	ClientAgency  ClientType = "agency"
	ClientOther   ClientType = "other"
)

// Client is a tenant: the sponsor that commissions campaigns.
type Client struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Type         ClientType         `bson:"type" json:"type"`
	ContactEmail string             `bson:"contactEmail,omitempty" json:"contactEmail"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type DiseaseArea struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
