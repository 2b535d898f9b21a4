package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleClient     Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleClient:
		return true
	}
	return false
}

// IsStaff is true for platform operators, who see every tenant.
func (r Role) IsStaff() bool { return r == RoleSuperAdmin || r == RoleAdmin }

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserInvited  UserStatus = "invited"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive || s == UserInvited
}

// User matches the document in the users collection.
type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email        string              `bson:"email" json:"email"`
	Name         string              `bson:"name" json:"name"`
	PasswordHash string              `bson:"passwordHash" json:"-"`
	Role         Role                `bson:"role" json:"role"`
	Status       UserStatus          `bson:"status" json:"status"`
	ClientID     *primitive.ObjectID `bson:"clientId,omitempty" json:"clientId,omitempty"`
	LastLoginAt  *time.Time          `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}
