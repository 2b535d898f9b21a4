package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignArchived  CampaignStatus = "archived"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignActive, CampaignArchived},
	CampaignActive:    {CampaignPaused, CampaignCompleted},
	CampaignPaused:    {CampaignActive, CampaignCompleted},
	CampaignCompleted: {CampaignArchived},
}

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted, CampaignArchived:
		return true
	}
	return false
}

func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionText         QuestionType = "text"
	QuestionScale        QuestionType = "scale"
)

// Question is one item of a campaign survey. Answers equal to one of DisqualifyOn
// screen the respondent out.
type Question struct {
	ID           string       `bson:"id" json:"id" binding:"required,max=64"`
	Text         string       `bson:"text" json:"text" binding:"required"`
	Type         QuestionType `bson:"type" json:"type" binding:"required,oneof=single_choice multi_choice text scale"`
	Options      []string     `bson:"options,omitempty" json:"options,omitempty"`
	Required     bool         `bson:"required" json:"required"`
	Min          *int         `bson:"min,omitempty" json:"min,omitempty"`
	Max          *int         `bson:"max,omitempty" json:"max,omitempty"`
	DisqualifyOn []string     `bson:"disqualifyOn,omitempty" json:"disqualifyOn,omitempty"`
}

type Campaign struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Code            string              `bson:"code" json:"code"` // human-readable, e.g. CMP-1A2B3C4D
	ClientID        primitive.ObjectID  `bson:"clientId" json:"clientId"`
	DiseaseAreaID   *primitive.ObjectID `bson:"diseaseAreaId,omitempty" json:"diseaseAreaId,omitempty"`
	Name            string              `bson:"name" json:"name"`
	Description     string              `bson:"description,omitempty" json:"description"`
	Status          CampaignStatus      `bson:"status" json:"status"`
	StartDate       *time.Time          `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate         *time.Time          `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Questions       []Question          `bson:"questions" json:"questions"`
	MaxNominations  int                 `bson:"maxNominations" json:"maxNominations"`
	Honorarium      Money               `bson:"honorarium" json:"honorarium"`
	Currency        string              `bson:"currency" json:"currency"`
	TargetResponses int                 `bson:"targetResponses" json:"targetResponses"`
	LaunchedAt      *time.Time          `bson:"launchedAt,omitempty" json:"launchedAt,omitempty"`
	CompletedAt     *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedBy       primitive.ObjectID  `bson:"createdBy,omitempty" json:"createdBy"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// QuestionByID returns the question with the given id, if any.
func (c *Campaign) QuestionByID(id string) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CampaignHcp assigns an HCP to a campaign and carries the survey token.
type CampaignHcp struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CampaignID     primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	HcpID          primitive.ObjectID `bson:"hcpId" json:"hcpId"`
	SurveyToken    string             `bson:"surveyToken" json:"surveyToken"`
	EmailSentAt    *time.Time         `bson:"emailSentAt,omitempty" json:"emailSentAt,omitempty"`
	ReminderCount  int                `bson:"reminderCount" json:"reminderCount"`
	LastReminderAt *time.Time         `bson:"lastReminderAt,omitempty" json:"lastReminderAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// LastContactAt is the time of the most recent email, or nil if none was sent.
func (ch *CampaignHcp) LastContactAt() *time.Time {
	if ch.LastReminderAt != nil {
		return ch.LastReminderAt
	}
	return ch.EmailSentAt
}
