package models

import "time"

type EmailKind string

const (
	EmailInvitation EmailKind = "invitation"
	EmailReminder   EmailKind = "reminder"
)

func (k EmailKind) Valid() bool { return k == EmailInvitation || k == EmailReminder }

// EmailJob is the message published to the email queue. The worker resolves
// everything else (HCP, campaign, token) from CampaignHcpID.
type EmailJob struct {
	ID            string    `json:"id"`
	Kind          EmailKind `json:"kind"`
	CampaignHcpID string    `json:"campaignHcpId"`
	RequestedAt   time.Time `json:"requestedAt"`
}

func (j EmailJob) RoutingKey() string { return "email." + string(j.Kind) }

type EventType string

const (
	EventSurveyCompleted       EventType = "survey.completed"
	EventCampaignStatusChanged EventType = "campaign.status_changed"
)

// Event is pushed to websocket subscribers. ClientID scopes delivery to the
// owning tenant; staff receive every event.
type Event struct {
	Type       EventType `json:"type"`
	ClientID   string    `json:"clientId"`
	CampaignID string    `json:"campaignId"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}
