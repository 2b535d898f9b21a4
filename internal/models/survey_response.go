package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ResponseStatus string

const (
	ResponseInProgress  ResponseStatus = "in_progress"
	ResponseCompleted   ResponseStatus = "completed"
	ResponseScreenedOut ResponseStatus = "screened_out"
	ResponseFlagged     ResponseStatus = "flagged"
)

var responseTransitions = map[ResponseStatus][]ResponseStatus{
	ResponseInProgress: {ResponseCompleted, ResponseScreenedOut},
	ResponseCompleted:  {ResponseFlagged},
	ResponseFlagged:    {ResponseCompleted},
}

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseInProgress, ResponseCompleted, ResponseScreenedOut, ResponseFlagged:
		return true
	}
	return false
}

func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	for _, allowed := range responseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Finished is true once the respondent can no longer submit.
func (s ResponseStatus) Finished() bool { return s != ResponseInProgress }

type Answer struct {
	QuestionID string   `bson:"questionId" json:"questionId" binding:"required"`
	Values     []string `bson:"values" json:"values"`
}

type SurveyResponse struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CampaignID    primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	CampaignHcpID primitive.ObjectID `bson:"campaignHcpId" json:"campaignHcpId"`
	HcpID         primitive.ObjectID `bson:"hcpId" json:"hcpId"`
	Status        ResponseStatus     `bson:"status" json:"status"`
	Answers       []Answer           `bson:"answers" json:"answers"`
	Nominations   []string           `bson:"nominations,omitempty" json:"nominations"`
	StartedAt     time.Time          `bson:"startedAt" json:"startedAt"`
	CompletedAt   *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type NominationStatus string

const (
	NominationPending   NominationStatus = "pending"
	NominationConfirmed NominationStatus = "confirmed"
	NominationRejected  NominationStatus = "rejected"
	NominationUnmatched NominationStatus = "unmatched"
)

func (s NominationStatus) Reviewable() bool {
	return s == NominationPending || s == NominationUnmatched
}

// NominationMatch links a free-text peer nomination to a known HCP.
type NominationMatch struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CampaignID     primitive.ObjectID  `bson:"campaignId" json:"campaignId"`
	ResponseID     primitive.ObjectID  `bson:"responseId" json:"responseId"`
	NominatorHcpID primitive.ObjectID  `bson:"nominatorHcpId" json:"nominatorHcpId"`
	RawName        string              `bson:"rawName" json:"rawName"`
	MatchedHcpID   *primitive.ObjectID `bson:"matchedHcpId,omitempty" json:"matchedHcpId,omitempty"`
	Score          float64             `bson:"score" json:"score"`
	Status         NominationStatus    `bson:"status" json:"status"`
	ReviewedBy     *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}

// NomineeCount is one row of the KOL ranking for a campaign.
type NomineeCount struct {
	HcpID primitive.ObjectID `bson:"_id" json:"hcpId"`
	Count int64              `bson:"count" json:"count"`
}
