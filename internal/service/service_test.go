package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/cache"
	"kol-campaign-api-server/internal/mailer"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"
	"kol-campaign-api-server/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func init() { auth.HashCost = bcrypt.MinCost }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type jobLog struct {
	mu   sync.Mutex
	jobs []models.EmailJob
	err  error
}

func (j *jobLog) Publish(_ context.Context, job models.EmailJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.jobs = append(j.jobs, job)
	return nil
}

func (j *jobLog) ofKind(kind models.EmailKind) []models.EmailJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.EmailJob
	for _, job := range j.jobs {
		if job.Kind == kind {
			out = append(out, job)
		}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *eventLog) Broadcast(ev models.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) ofType(t models.EventType) []models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeUploader struct {
	name string
	body []byte
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, body io.Reader, name, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.name = name
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(body)
	u.body = buf.Bytes()
	return "https://cdn.example.test/exports/" + name, nil
}

type env struct {
	t        *testing.T
	ctx      context.Context
	st       *store.Store
	svc      *Services
	jobs     *jobLog
	events   *eventLog
	mail     *mailer.Recorder
	uploader *fakeUploader
	cache    *cache.Memory
	clock    *clock
	staff    Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tokens, err := auth.NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "kol-test", Expiration: "1h"})
	require.NoError(t, err)

	e := &env{
		t:        t,
		ctx:      context.Background(),
		st:       storetest.New(),
		jobs:     &jobLog{},
		events:   &eventLog{},
		mail:     &mailer.Recorder{},
		uploader: &fakeUploader{},
		cache:    cache.NewMemory(),
		clock:    &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		staff:    Actor{UserID: primitive.NewObjectID(), Role: models.RoleAdmin},
	}
	e.svc = New(Deps{
		Store:     e.st,
		Tokens:    tokens,
		Cache:     e.cache,
		Publisher: e.jobs,
		Events:    e.events,
		Uploader:  e.uploader,
		NewSender: func(models.EmailSettings) mailer.Sender { return e.mail },
		Now:       e.clock.Now,
	})
	return e
}

func (e *env) client(name string) *models.Client {
	e.t.Helper()
	c, err := e.svc.Clients.Create(e.ctx, ClientInput{Name: name, Type: models.ClientPharma})
	require.NoError(e.t, err)
	return c
}

func (e *env) hcp(first, last string) *models.Hcp {
	e.t.Helper()
	h, err := e.svc.Hcps.Create(e.ctx, HcpInput{
		FirstName: first,
		LastName:  last,
		Email:     first + "." + last + "@clinic.test",
		Specialty: "Cardiology",
	})
	require.NoError(e.t, err)
	return h
}

func intp(v int) *int { return &v }

func sampleQuestions() []models.Question {
	return []models.Question{
		{ID: "treats", Text: "Do you treat patients with the condition?", Type: models.QuestionSingleChoice,
			Options: []string{"Yes", "No"}, Required: true, DisqualifyOn: []string{"No"}},
		{ID: "confidence", Text: "How confident are you in current guidelines?", Type: models.QuestionScale,
			Min: intp(1), Max: intp(10), Required: true},
		{ID: "therapies", Text: "Which therapies do you use?", Type: models.QuestionMultiChoice,
			Options: []string{"A", "B", "C"}},
		{ID: "comments", Text: "Anything else?", Type: models.QuestionText},
	}
}

func (e *env) draft(client *models.Client, mutate ...func(*CreateCampaignInput)) *models.Campaign {
	e.t.Helper()
	in := CreateCampaignInput{
		ClientID:       client.ID.Hex(),
		Name:           "Heart failure insights",
		Questions:      sampleQuestions(),
		MaxNominations: 3,
		Honorarium:     "150.00",
	}
	for _, m := range mutate {
		m(&in)
	}
	c, err := e.svc.Campaigns.Create(e.ctx, e.staff, in)
	require.NoError(e.t, err)
	return c
}

// launch assigns hcps to a new campaign, activates it and delivers the invitations.
func (e *env) launch(client *models.Client, hcps []*models.Hcp, mutate ...func(*CreateCampaignInput)) (*models.Campaign, []models.CampaignHcp) {
	e.t.Helper()
	c := e.draft(client, mutate...)
	ids := make([]string, 0, len(hcps))
	for _, h := range hcps {
		ids = append(ids, h.ID.Hex())
	}
	_, err := e.svc.Campaigns.AssignHcps(e.ctx, c.ID, ids)
	require.NoError(e.t, err)
	res, err := e.svc.Campaigns.Transition(e.ctx, c.ID, models.CampaignActive)
	require.NoError(e.t, err)
	for _, job := range e.jobs.ofKind(models.EmailInvitation) {
		require.NoError(e.t, e.svc.Notifications.Deliver(e.ctx, job))
	}
	chs, err := e.st.CampaignHcps.ListByCampaign(e.ctx, c.ID)
	require.NoError(e.t, err)
	return res.Campaign, chs
}

func (e *env) completeAnswers() []models.Answer {
	return []models.Answer{
		{QuestionID: "treats", Values: []string{"Yes"}},
		{QuestionID: "confidence", Values: []string{"7"}},
		{QuestionID: "therapies", Values: []string{"A", "C"}},
	}
}

func clientActor(clientID primitive.ObjectID) Actor {
	return Actor{UserID: primitive.NewObjectID(), Role: models.RoleClient, ClientID: &clientID}
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
	assert.Equal(t, field, verr.Field)
}

func TestActorFromClaims(t *testing.T) {
	clientID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	a, err := ActorFromClaims(&auth.Claims{UserID: userID.Hex(), Role: models.RoleClient, ClientID: clientID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, userID, a.UserID)
	require.NotNil(t, a.ClientID)
	assert.True(t, a.canSee(clientID))
	assert.False(t, a.canSee(primitive.NewObjectID()))

	_, err = ActorFromClaims(&auth.Claims{UserID: "nope"})
	assert.Error(t, err)
}

func TestNewSurveyToken(t *testing.T) {
	a, b := NewSurveyToken(), NewSurveyToken()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
