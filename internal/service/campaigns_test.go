package service

import (
	"errors"
	"testing"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateCampaign(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)

	assert.Regexp(t, `^CMP-[0-9A-F]{8}$`, c.Code)
	assert.Equal(t, models.CampaignDraft, c.Status)
	assert.Equal(t, "USD", c.Currency, "defaults to the settings currency")
	assert.Equal(t, "150.00", c.Honorarium.StringFixed(2))
	assert.Equal(t, e.staff.UserID, c.CreatedBy)

	_, err := e.svc.Campaigns.Create(e.ctx, e.staff, CreateCampaignInput{ClientID: primitive.NewObjectID().Hex(), Name: "x"})
	assertValidation(t, err, "clientId")
}

func TestCreateCampaignValidatesQuestions(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	cases := map[string]struct {
		mutate func(*CreateCampaignInput)
		field  string
	}{
		"duplicate id": {func(in *CreateCampaignInput) {
			in.Questions = append(in.Questions, models.Question{ID: "treats", Text: "again", Type: models.QuestionText})
		}, "questions[4].id"},
		"one option": {func(in *CreateCampaignInput) {
			in.Questions = []models.Question{{ID: "q", Text: "t", Type: models.QuestionSingleChoice, Options: []string{"only"}}}
		}, "questions[0].options"},
		"disqualify not an option": {func(in *CreateCampaignInput) {
			in.Questions = []models.Question{{ID: "q", Text: "t", Type: models.QuestionSingleChoice, Options: []string{"a", "b"}, DisqualifyOn: []string{"c"}}}
		}, "questions[0].disqualifyOn"},
		"scale bounds": {func(in *CreateCampaignInput) {
			in.Questions = []models.Question{{ID: "q", Text: "t", Type: models.QuestionScale, Min: intp(5), Max: intp(5)}}
		}, "questions[0]"},
		"dates": {func(in *CreateCampaignInput) {
			in.StartDate, in.EndDate = &start, &end
		}, "endDate"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := CreateCampaignInput{ClientID: acme.ID.Hex(), Name: "c", Questions: sampleQuestions()}
			tc.mutate(&in)
			_, err := e.svc.Campaigns.Create(e.ctx, e.staff, in)
			assertValidation(t, err, tc.field)
		})
	}
}

func TestCampaignVisibility(t *testing.T) {
	e := newEnv(t)
	acme, rival := e.client("Acme"), e.client("Rival")
	mine := e.draft(acme)
	theirs := e.draft(rival)

	viewer := clientActor(acme.ID)
	list, total, err := e.svc.Campaigns.List(e.ctx, viewer, store.CampaignFilter{ClientID: &rival.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "client filter is overridden for client users")
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = e.svc.Campaigns.Get(e.ctx, viewer, theirs.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, total, err = e.svc.Campaigns.List(e.ctx, e.staff, store.CampaignFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestUpdateCampaign(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)

	qs := sampleQuestions()[:2]
	name := "Renamed"
	updated, err := e.svc.Campaigns.Update(e.ctx, c.ID, UpdateCampaignInput{Name: &name, Questions: &qs})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Len(t, updated.Questions, 2)

	active, _ := e.launch(acme, []*models.Hcp{e.hcp("A", "B")})
	changed := sampleQuestions()[:1]
	_, err = e.svc.Campaigns.Update(e.ctx, active.ID, UpdateCampaignInput{Questions: &changed})
	assert.ErrorIs(t, err, ErrConflict)

	same := sampleQuestions()
	target := 5
	_, err = e.svc.Campaigns.Update(e.ctx, active.ID, UpdateCampaignInput{Questions: &same, TargetResponses: &target})
	assert.NoError(t, err, "resending unchanged questions is allowed")

	amount := "10"
	_, err = e.svc.Campaigns.Update(e.ctx, active.ID, UpdateCampaignInput{Honorarium: &amount})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTransitionRules(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)

	_, err := e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignActive)
	assertValidation(t, err, "hcps")

	_, err = e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.svc.Campaigns.Transition(e.ctx, c.ID, "bogus")
	assertValidation(t, err, "status")

	empty := e.draft(acme, func(in *CreateCampaignInput) { in.Questions = nil })
	_, err = e.svc.Campaigns.AssignHcps(e.ctx, empty.ID, []string{e.hcp("A", "B").ID.Hex()})
	require.NoError(t, err)
	_, err = e.svc.Campaigns.Transition(e.ctx, empty.ID, models.CampaignActive)
	assertValidation(t, err, "questions")
}

func TestLaunchQueuesInvitationsAndBroadcasts(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	a, b := e.hcp("Ada", "Lovelace"), e.hcp("Alan", "Turing")
	c := e.draft(acme)
	res, err := e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{a.ID.Hex(), b.ID.Hex(), a.ID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Zero(t, res.Queued, "drafts do not send invitations")

	tr, err := e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignActive)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Queued)
	require.NotNil(t, tr.Campaign.LaunchedAt)
	assert.Len(t, e.jobs.ofKind(models.EmailInvitation), 2)

	events := e.events.ofType(models.EventCampaignStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, acme.ID.Hex(), events[0].ClientID)

	// adding someone to a live campaign invites only the newcomer
	g := e.hcp("Grace", "Hopper")
	res, err = e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{a.ID.Hex(), g.ID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Existing)
	assert.Equal(t, 1, res.Queued)
	assert.Len(t, e.jobs.ofKind(models.EmailInvitation), 3)
}

func TestPauseAndResumeOnlyInvitesUnsent(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c, _ := e.launch(acme, []*models.Hcp{e.hcp("A", "One")})
	_, err := e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignPaused)
	require.NoError(t, err)

	_, err = e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{e.hcp("B", "Two").ID.Hex()})
	require.NoError(t, err)

	tr, err := e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignActive)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Queued)
}

func TestAssignRejectsUnknownHcpAndClosedCampaign(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)
	_, err := e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{primitive.NewObjectID().Hex()})
	assertValidation(t, err, "hcpIds")

	_, err = e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignArchived)
	require.NoError(t, err)
	_, err = e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{e.hcp("A", "B").ID.Hex()})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRemoveHcp(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	a, b := e.hcp("A", "One"), e.hcp("B", "Two")
	c, chs := e.launch(acme, []*models.Hcp{a, b})

	var started models.CampaignHcp
	for _, ch := range chs {
		if ch.HcpID == a.ID {
			started = ch
		}
	}
	_, err := e.svc.Surveys.Start(e.ctx, started.SurveyToken)
	require.NoError(t, err)

	assert.ErrorIs(t, e.svc.Campaigns.RemoveHcp(e.ctx, c.ID, a.ID), ErrConflict)
	require.NoError(t, e.svc.Campaigns.RemoveHcp(e.ctx, c.ID, b.ID))
	assert.ErrorIs(t, e.svc.Campaigns.RemoveHcp(e.ctx, c.ID, b.ID), store.ErrNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	c := e.draft(acme)
	_, err := e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{e.hcp("A", "B").ID.Hex()})
	require.NoError(t, err)
	require.NoError(t, e.svc.Campaigns.Delete(e.ctx, c.ID))
	n, _ := e.st.CampaignHcps.CountByCampaign(e.ctx, c.ID)
	assert.Zero(t, n)

	live, _ := e.launch(acme, []*models.Hcp{e.hcp("C", "D")})
	assert.ErrorIs(t, e.svc.Campaigns.Delete(e.ctx, live.ID), ErrConflict)
}

func TestSendReminders(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	done, pending, fresh := e.hcp("Done", "Doctor"), e.hcp("Pending", "Doctor"), e.hcp("Fresh", "Doctor")
	c, chs := e.launch(acme, []*models.Hcp{done, pending})
	token := map[primitive.ObjectID]string{}
	for _, ch := range chs {
		token[ch.HcpID] = ch.SurveyToken
	}
	_, err := e.svc.Surveys.Submit(e.ctx, token[done.ID], SubmitInput{Answers: e.completeAnswers()})
	require.NoError(t, err)

	res, err := e.svc.Campaigns.SendReminders(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Eligible, "nobody is due within the interval")

	e.clock.advance(3 * 24 * time.Hour)
	_, err = e.svc.Campaigns.AssignHcps(e.ctx, c.ID, []string{fresh.ID.Hex()})
	require.NoError(t, err)
	for _, job := range e.jobs.ofKind(models.EmailInvitation) {
		require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	}

	res, err = e.svc.Campaigns.SendReminders(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Eligible, "only the pending HCP; the fresh invite is too recent")
	reminders := e.jobs.ofKind(models.EmailReminder)
	require.Len(t, reminders, 1)
	require.NoError(t, e.svc.Notifications.Deliver(e.ctx, reminders[0]))

	ch, err := e.st.CampaignHcps.Find(e.ctx, c.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ReminderCount)

	// max two reminders by default
	e.clock.advance(3 * 24 * time.Hour)
	res, err = e.svc.Campaigns.SendReminders(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Eligible)
	for _, job := range e.jobs.ofKind(models.EmailReminder)[1:] {
		require.NoError(t, e.svc.Notifications.Deliver(e.ctx, job))
	}
	e.clock.advance(3 * 24 * time.Hour)
	res, err = e.svc.Campaigns.SendReminders(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Eligible, "pending HCP reached the limit")
}

func TestRemindersNeedActiveCampaign(t *testing.T) {
	e := newEnv(t)
	c := e.draft(e.client("Acme"))
	_, err := e.svc.Campaigns.SendReminders(e.ctx, c.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSurveyLinks(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	ada := e.hcp("Ada", "Lovelace")
	c, chs := e.launch(acme, []*models.Hcp{ada})
	e.draft(acme)

	links, err := e.svc.Campaigns.SurveyLinks(e.ctx, nil)
	require.NoError(t, err)
	require.Len(t, links, 1, "drafts are not listed")
	assert.Equal(t, c.Code, links[0].CampaignCode)
	assert.Equal(t, "Ada Lovelace", links[0].HcpName)
	assert.Equal(t, "http://localhost:3000/survey/"+chs[0].SurveyToken, links[0].URL)
	assert.Equal(t, "not_started", links[0].Status)

	_, err = e.svc.Campaigns.SurveyLinks(e.ctx, &primitive.NilObjectID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestAutoCompleteOnTarget(t *testing.T) {
	e := newEnv(t)
	acme := e.client("Acme")
	a, b := e.hcp("A", "One"), e.hcp("B", "Two")
	c, chs := e.launch(acme, []*models.Hcp{a, b}, func(in *CreateCampaignInput) { in.TargetResponses = 1 })

	_, err := e.svc.Surveys.Submit(e.ctx, chs[0].SurveyToken, SubmitInput{Answers: e.completeAnswers()})
	require.NoError(t, err)

	got, err := e.st.Campaigns.FindByID(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	_, err = e.svc.Surveys.Get(e.ctx, chs[1].SurveyToken)
	assert.ErrorIs(t, err, ErrGone)
}
