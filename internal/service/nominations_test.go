package service

import (
	"context"
	"testing"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// prefixQueries records candidate lookups and refuses unbounded listings.
type prefixQueries struct {
	store.Hcps
	t        *testing.T
	prefixes [][]string
	limits   []int64
}

func (q *prefixQueries) List(context.Context, store.HcpFilter) ([]models.Hcp, int64, error) {
	q.t.Fatal("nomination matching must not list every HCP")
	return nil, 0, nil
}

func (q *prefixQueries) FindByNamePrefixes(ctx context.Context, prefixes []string, limit int64) ([]models.Hcp, error) {
	q.prefixes = append(q.prefixes, prefixes)
	q.limits = append(q.limits, limit)
	return q.Hcps.FindByNamePrefixes(ctx, prefixes, limit)
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Dr. Jane  O'Neil, MD": "jane oneil",
		"Prof John Smith Jr.":  "john smith",
		"  SMITH,   john ":     "smith john",
		"María-José García":    "maría josé garcía",
		"Dr.":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestMatch(t *testing.T) {
	john := models.Hcp{ID: primitive.NewObjectID(), FirstName: "John", LastName: "Smith"}
	jane := models.Hcp{ID: primitive.NewObjectID(), FirstName: "Jane", LastName: "Doe"}
	m := NewMatcher()

	t.Run("exact", func(t *testing.T) {
		res := m.Match("Dr. John Smith", []models.Hcp{john, jane})
		assert.Equal(t, models.NominationConfirmed, res.Status)
		assert.Equal(t, 1.0, res.Score)
		require.NotNil(t, res.HcpID)
		assert.Equal(t, john.ID, *res.HcpID)
	})

	t.Run("reversed", func(t *testing.T) {
		res := m.Match("Smith, John", []models.Hcp{john, jane})
		assert.Equal(t, models.NominationConfirmed, res.Status)
	})

	t.Run("fuzzy", func(t *testing.T) {
		res := m.Match("Jon Smith", []models.Hcp{john, jane})
		assert.Equal(t, models.NominationPending, res.Status)
		assert.InDelta(t, 0.9, res.Score, 0.001)
		require.NotNil(t, res.HcpID)
		assert.Equal(t, john.ID, *res.HcpID)
	})

	t.Run("namesakes", func(t *testing.T) {
		other := models.Hcp{ID: primitive.NewObjectID(), FirstName: "John", LastName: "Smith"}
		res := m.Match("John Smith", []models.Hcp{john, other})
		assert.Equal(t, models.NominationPending, res.Status)
		assert.Equal(t, 0.99, res.Score)
	})

	t.Run("too weak", func(t *testing.T) {
		assert.Equal(t, models.NominationUnmatched, m.Match("JS", []models.Hcp{john}).Status)
	})

	t.Run("unknown", func(t *testing.T) {
		res := m.Match("Zed Quux", []models.Hcp{john, jane})
		assert.Equal(t, models.NominationUnmatched, res.Status)
		assert.Nil(t, res.HcpID)
	})

	t.Run("no candidates", func(t *testing.T) {
		assert.Equal(t, models.NominationUnmatched, m.Match("John Smith", nil).Status)
	})
}

func TestNominationReview(t *testing.T) {
	e := newEnv(t)
	ada := e.hcp("Ada", "Lovelace")
	grace := e.hcp("Grace", "Hopper")
	c, chs := e.launch(e.client("Acme"), []*models.Hcp{ada})

	_, err := e.svc.Surveys.Submit(e.ctx, chs[0].SurveyToken, SubmitInput{
		Answers:     e.completeAnswers(),
		Nominations: []string{"Grace Hoper", "Ada Lovelace", "Nobody Known"},
	})
	require.NoError(t, err)

	noms, total, err := e.svc.Nominations.List(e.ctx, store.NominationFilter{CampaignID: &c.ID})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	fuzzy, self, unknown := noms[0], noms[1], noms[2]
	assert.Equal(t, models.NominationPending, fuzzy.Status)
	assert.NotEqual(t, models.NominationConfirmed, self.Status, "the nominator is not a candidate")
	assert.Equal(t, models.NominationUnmatched, unknown.Status)

	reviewer := e.staff
	got, err := e.svc.Nominations.Review(e.ctx, reviewer, fuzzy.ID, ReviewInput{Decision: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, models.NominationConfirmed, got.Status)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, grace.ID, *got.MatchedHcpID)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, reviewer.UserID, *got.ReviewedBy)

	_, err = e.svc.Nominations.Review(e.ctx, reviewer, fuzzy.ID, ReviewInput{Decision: "reject"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.svc.Nominations.Review(e.ctx, reviewer, unknown.ID, ReviewInput{Decision: "confirm"})
	assertValidation(t, err, "hcpId")
	_, err = e.svc.Nominations.Review(e.ctx, reviewer, unknown.ID, ReviewInput{Decision: "confirm", HcpID: primitive.NewObjectID().Hex()})
	assertValidation(t, err, "hcpId")
	_, err = e.svc.Nominations.Review(e.ctx, reviewer, unknown.ID, ReviewInput{Decision: "confirm", HcpID: ada.ID.Hex()})
	assertValidation(t, err, "hcpId")

	got, err = e.svc.Nominations.Review(e.ctx, reviewer, unknown.ID, ReviewInput{Decision: "reject"})
	require.NoError(t, err)
	assert.Equal(t, models.NominationRejected, got.Status)

	kols, err := e.svc.Campaigns.Kols(e.ctx, e.staff, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, kols, 1)
	assert.Equal(t, 1, kols[0].Rank)
	assert.Equal(t, grace.ID, kols[0].Hcp.ID)
	assert.Equal(t, int64(1), kols[0].Nominations)

	_, err = e.svc.Campaigns.Kols(e.ctx, clientActor(primitive.NewObjectID()), c.ID, 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNamePrefixes(t *testing.T) {
	assert.Equal(t, []string{"gra", "hop"}, namePrefixes("Dr. Grace Hopper"))
	assert.Equal(t, []string{"jo", "smi"}, namePrefixes("Jo J. Smith, MD"))
	assert.Equal(t, []string{"smi"}, namePrefixes("smith Smithers"))
	assert.Empty(t, namePrefixes("Prof."))
}

func TestRecordNominationsQueriesBoundedCandidates(t *testing.T) {
	e := newEnv(t)
	ada := e.hcp("Ada", "Lovelace")
	grace := e.hcp("Grace", "Hopper")
	e.hcp("Alan", "Turing")
	_, chs := e.launch(e.client("Acme"), []*models.Hcp{ada})

	q := &prefixQueries{Hcps: e.st.Hcps, t: t}
	e.st.Hcps = q

	_, err := e.svc.Surveys.Submit(e.ctx, chs[0].SurveyToken, SubmitInput{
		Answers:     e.completeAnswers(),
		Nominations: []string{"Grace Hopper", "Nobody Known"},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"gra", "hop"}, {"nob", "kno"}}, q.prefixes)
	assert.Equal(t, []int64{candidateLimit, candidateLimit}, q.limits)

	noms, _, err := e.svc.Nominations.List(e.ctx, store.NominationFilter{})
	require.NoError(t, err)
	require.Len(t, noms, 2)
	assert.Equal(t, models.NominationConfirmed, noms[0].Status)
	assert.Equal(t, grace.ID, *noms[0].MatchedHcpID)
	assert.Equal(t, models.NominationUnmatched, noms[1].Status)
}
