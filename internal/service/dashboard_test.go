package service

import (
	"testing"

	"kol-campaign-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	e := newEnv(t)
	acme, rival := e.client("Acme"), e.client("Rival")
	a, b, c := e.hcp("A", "One"), e.hcp("B", "Two"), e.hcp("C", "Three")

	_, chs := e.launch(acme, []*models.Hcp{a, b})
	_, err := e.svc.Surveys.Submit(e.ctx, chs[0].SurveyToken, SubmitInput{Answers: e.completeAnswers()})
	require.NoError(t, err)
	_, err = e.svc.Surveys.Start(e.ctx, chs[1].SurveyToken)
	require.NoError(t, err)
	e.draft(acme)
	e.submitted(rival, c)

	all, err := e.svc.Dashboard.Stats(e.ctx, e.staff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.HcpTotal)
	assert.Equal(t, int64(2), all.Campaigns[models.CampaignActive])
	assert.Equal(t, int64(1), all.Campaigns[models.CampaignDraft])
	assert.Equal(t, int64(2), all.Responses[models.ResponseCompleted])
	assert.Equal(t, int64(1), all.Responses[models.ResponseInProgress])
	assert.InDelta(t, 2.0/3.0, all.CompletionRate, 0.0001)

	mine, err := e.svc.Dashboard.Stats(e.ctx, clientActor(acme.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.HcpTotal, "only HCPs on the client's campaigns")
	assert.Equal(t, int64(1), mine.Campaigns[models.CampaignActive])
	assert.Equal(t, int64(1), mine.Responses[models.ResponseCompleted])
	assert.InDelta(t, 0.5, mine.CompletionRate, 0.0001)
	require.Len(t, mine.Payments, 1)
	assert.Equal(t, int64(1), mine.Payments[0].Count)

	none, err := e.svc.Dashboard.Stats(e.ctx, Actor{Role: models.RoleClient})
	require.NoError(t, err)
	assert.Empty(t, none.Campaigns)
	assert.Zero(t, none.HcpTotal)
	assert.Zero(t, none.CompletionRate)
}

func TestDashboardIsCachedPerScope(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	e.hcp("A", "One")

	first, err := e.svc.Dashboard.Stats(e.ctx, e.staff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.HcpTotal)

	e.hcp("C", "Three")
	cached, err := e.svc.Dashboard.Stats(e.ctx, e.staff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.HcpTotal, "served from cache")

	b := e.hcp("B", "Two")
	e.launch(acme, []*models.Hcp{b})
	fresh, err := e.svc.Dashboard.Stats(e.ctx, clientActor(acme.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.HcpTotal, "client scope has its own entry")

	require.NoError(t, e.cache.Delete(e.ctx, "dashboard:all"))
	again, err := e.svc.Dashboard.Stats(e.ctx, e.staff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.HcpTotal)
}
