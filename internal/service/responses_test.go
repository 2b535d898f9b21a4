package service

import (
	"testing"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// submitted launches a campaign for the given HCPs and completes every survey.
func (e *env) submitted(client *models.Client, hcps ...*models.Hcp) *models.Campaign {
	e.t.Helper()
	c, chs := e.launch(client, hcps)
	for _, ch := range chs {
		_, err := e.svc.Surveys.Submit(e.ctx, ch.SurveyToken, SubmitInput{Answers: e.completeAnswers()})
		require.NoError(e.t, err)
	}
	return c
}

func TestResponseScoping(t *testing.T) {
	e := newEnv(t)
	acme, rival := e.client("Acme"), e.client("Rival")
	e.submitted(acme, e.hcp("A", "One"))
	theirs := e.submitted(rival, e.hcp("B", "Two"))

	all, total, err := e.svc.Responses.List(e.ctx, e.staff, store.ResponseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	viewer := clientActor(acme.ID)
	mine, total, err := e.svc.Responses.List(e.ctx, viewer, store.ResponseFilter{CampaignID: &theirs.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, mine)

	var foreign models.SurveyResponse
	for _, r := range all {
		if r.CampaignID == theirs.ID {
			foreign = r
		}
	}
	_, err = e.svc.Responses.Get(e.ctx, viewer, foreign.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := e.svc.Responses.Get(e.ctx, e.staff, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, got.Status)

	_, total, err = e.svc.Responses.List(e.ctx, Actor{Role: models.RoleClient}, store.ResponseFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "client users without a client see nothing")
}

func TestFlagResponse(t *testing.T) {
	e := newEnv(t)
	e.submitted(e.client("Acme"), e.hcp("A", "One"))
	list, _, err := e.svc.Responses.List(e.ctx, e.staff, store.ResponseFilter{})
	require.NoError(t, err)
	id := list[0].ID

	r, err := e.svc.Responses.SetStatus(e.ctx, id, models.ResponseFlagged)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFlagged, r.Status)

	_, err = e.svc.Responses.SetStatus(e.ctx, id, models.ResponseInProgress)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.svc.Responses.SetStatus(e.ctx, id, "lost")
	assertValidation(t, err, "status")

	r, err = e.svc.Responses.SetStatus(e.ctx, id, models.ResponseCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, r.Status)
}

func TestPaymentLifecycle(t *testing.T) {
	e := newEnv(t)
	c := e.submitted(e.client("Acme"), e.hcp("A", "One"), e.hcp("B", "Two"))
	payments, total, err := e.svc.Payments.List(e.ctx, store.PaymentFilter{CampaignID: &c.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	id := payments[0].ID

	_, err = e.svc.Payments.Transition(e.ctx, id, PaymentStatusInput{Status: models.PaymentPaid, Reference: "TX-1"})
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending payments must be approved first")

	p, err := e.svc.Payments.Transition(e.ctx, id, PaymentStatusInput{Status: models.PaymentApproved})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, p.Status)

	_, err = e.svc.Payments.Transition(e.ctx, id, PaymentStatusInput{Status: models.PaymentPaid})
	assertValidation(t, err, "reference")

	p, err = e.svc.Payments.Transition(e.ctx, id, PaymentStatusInput{Status: models.PaymentPaid, Reference: "TX-1"})
	require.NoError(t, err)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, "TX-1", p.Reference)

	_, err = e.svc.Payments.Transition(e.ctx, id, PaymentStatusInput{Status: models.PaymentCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition, "paid is final")

	sum, err := e.svc.Payments.Summary(e.ctx, e.staff, c.ID)
	require.NoError(t, err)
	require.Len(t, sum.Totals, 2)
	assert.Equal(t, models.PaymentPaid, sum.Totals[0].Status)
	assert.Equal(t, "150.00", sum.Totals[0].Amount.StringFixed(2))
	assert.Equal(t, models.PaymentPending, sum.Totals[1].Status)
	assert.Equal(t, int64(1), sum.Totals[1].Count)

	_, err = e.svc.Payments.Summary(e.ctx, clientActor(primitive.NewObjectID()), c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
