package service

import (
	"errors"
	"testing"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDeliverInvitation(t *testing.T) {
	e := newEnv(t)
	ada := e.hcp("Ada", "Lovelace")
	c, chs := e.launch(e.client("Acme"), []*models.Hcp{ada})

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "ada.lovelace@clinic.test", msg.To)
	assert.Equal(t, "Ada Lovelace", msg.ToName)
	assert.Equal(t, "Invitation: "+c.Name, msg.Subject)
	assert.Contains(t, msg.Text, "http://localhost:3000/survey/"+chs[0].SurveyToken)
	assert.Contains(t, msg.Text, "150.00 USD")
	assert.Contains(t, msg.HTML, "<strong>"+c.Name+"</strong>")
	assert.Equal(t, "surveys@example.com", msg.FromAddress)

	require.NotNil(t, chs[0].EmailSentAt)
	assert.Equal(t, e.clock.t, *chs[0].EmailSentAt)

	// a redelivered job does not email twice
	for _, job := range e.jobs.ofKind(models.EmailInvitation) {
		require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	}
	assert.Len(t, e.mail.Sent(), 1)
}

func TestDeliverSkipsInactiveCampaign(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)
	_, err := e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{e.hcp("A", "B").ID.Hex()})
	require.NoError(t, err)
	_, err = e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignActive)
	require.NoError(t, err)
	_, err = e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignPaused)
	require.NoError(t, err)

	jobs := e.jobs.ofKind(models.EmailInvitation)
	require.Len(t, jobs, 1)
	require.NoError(t, e.svc.Notifications.Deliver(e.ctx, jobs[0]))
	assert.Empty(t, e.mail.Sent())
}

func TestDeliverReminder(t *testing.T) {
	e := newEnv(t)
	ada := e.hcp("Ada", "Lovelace")
	c, chs := e.launch(e.client("Acme"), []*models.Hcp{ada})
	job := models.EmailJob{ID: "r1", Kind: models.EmailReminder, CampaignHcpID: chs[0].ID.Hex()}

	require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	assert.Len(t, e.mail.Sent(), 1, "too early: only the invitation went out")

	e.clock.advance(3 * 24 * time.Hour)
	require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	sent := e.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Reminder: "+c.Name, sent[1].Subject)

	ch, err := e.st.CampaignHcps.FindByID(e.ctx, chs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ReminderCount)
	require.NotNil(t, ch.LastReminderAt)
	assert.Equal(t, e.clock.t, *ch.LastReminderAt)

	// finished surveys are not chased
	_, err = e.svc.Surveys.Submit(e.ctx, chs[0].SurveyToken, SubmitInput{Answers: e.completeAnswers()})
	require.NoError(t, err)
	e.clock.advance(3 * 24 * time.Hour)
	require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	assert.Len(t, e.mail.Sent(), 2)
}

func TestDeliverErrors(t *testing.T) {
	e := newEnv(t)
	_, chs := e.launch(e.client("Acme"), []*models.Hcp{e.hcp("A", "B")})

	err := e.svc.Notifications.Deliver(e.ctx, models.EmailJob{Kind: "fax", CampaignHcpID: chs[0].ID.Hex()})
	assert.ErrorIs(t, err, queue.ErrPermanent)
	err = e.svc.Notifications.Deliver(e.ctx, models.EmailJob{Kind: models.EmailInvitation, CampaignHcpID: "zzz"})
	assert.ErrorIs(t, err, queue.ErrPermanent)

	assert.NoError(t, e.svc.Notifications.Deliver(e.ctx, models.EmailJob{
		Kind: models.EmailInvitation, CampaignHcpID: primitive.NewObjectID().Hex(),
	}), "removed assignments are skipped")

	// transient SMTP failures are retried, so they must not be permanent
	_, err = e.svc.Campaigns.AssignHcps(e.ctx, chs[0].CampaignID, []string{e.hcp("C", "D").ID.Hex()})
	require.NoError(t, err)
	jobs := e.jobs.ofKind(models.EmailInvitation)
	e.mail.Err = errors.New("421 try later")
	err = e.svc.Notifications.Deliver(e.ctx, jobs[len(jobs)-1])
	require.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrPermanent)
	assert.ErrorContains(t, err, "421 try later")
}
