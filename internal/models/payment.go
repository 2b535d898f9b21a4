package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentApproved, PaymentCancelled},
	PaymentApproved: {PaymentPaid, PaymentFailed, PaymentCancelled},
	PaymentFailed:   {PaymentApproved},
}

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentApproved, PaymentPaid, PaymentFailed, PaymentCancelled}

func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment is the honorarium owed to an HCP for a completed survey.
type Payment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CampaignID primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	HcpID      primitive.ObjectID `bson:"hcpId" json:"hcpId"`
	ResponseID primitive.ObjectID `bson:"responseId" json:"responseId"`
	Amount     Money              `bson:"amount" json:"amount"`
	Currency   string             `bson:"currency" json:"currency"`
	Status     PaymentStatus      `bson:"status" json:"status"`
	Reference  string             `bson:"reference,omitempty" json:"reference"`
	PaidAt     *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PaymentTotal aggregates payments sharing a status and currency.
type PaymentTotal struct {
	Status   PaymentStatus `json:"status"`
	Currency string        `json:"currency"`
	Count    int64         `json:"count"`
	Amount   Money         `json:"amount"`
}
