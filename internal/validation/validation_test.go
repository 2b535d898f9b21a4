package validation

import (
	"errors"
	"testing"

	"kol-campaign-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sample struct {
	ID     string   `json:"id" binding:"required,objectid"`
	Slug   string   `json:"slug" binding:"omitempty,slug"`
	Amount string   `json:"amount" binding:"omitempty,money"`
	Link   string   `json:"link" binding:"omitempty,httpurl"`
	HcpIDs []string `json:"hcpIds" binding:"omitempty,dive,objectid"`
}

func TestCustomRules(t *testing.T) {
	valid := sample{ID: primitive.NewObjectID().Hex(), Slug: "rare-diseases", Amount: "150.50", Link: "https://x.example/s"}
	require.NoError(t, Struct(valid))

	cases := map[string]sample{
		"id":        {ID: "123"},
		"slug":      {ID: valid.ID, Slug: "Rare Diseases"},
		"amount":    {ID: valid.ID, Amount: "1.005"},
		"link":      {ID: valid.ID, Link: "ftp://x.example"},
		"hcpIds[1]": {ID: valid.ID, HcpIDs: []string{valid.ID, "nope"}},
	}
	for field, s := range cases {
		t.Run(field, func(t *testing.T) {
			err := Struct(s)
			require.Error(t, err)
			described := Describe(err)
			require.Len(t, described, 1)
			assert.Equal(t, field, described[0].Field)
		})
	}
}

func TestMoneyRule(t *testing.T) {
	assert.NoError(t, Var("0", "money"))
	assert.NoError(t, Var("12.5", "money"))
	assert.NoError(t, Var("10.500", "money"), "trailing zeros are not extra precision")
	assert.NoError(t, Var("1e2", "money"))
	assert.Error(t, Var("12.345", "money"))
	assert.Error(t, Var("0.001", "money"))
	assert.Error(t, Var("-1", "money"))
	assert.Error(t, Var("ten", "money"))
}

func TestSettingsRules(t *testing.T) {
	s := models.DefaultSettings()
	require.NoError(t, Struct(s))

	s.Email.SMTPPort = 70000
	s.Security.PasswordMinLength = 4
	s.System.DefaultCurrency = "usd"
	s.System.SurveyBaseURL = "/relative"

	fields := map[string]bool{}
	for _, fe := range Describe(Struct(s)) {
		fields[fe.Field] = true
	}
	assert.True(t, fields["email.smtpPort"])
	assert.True(t, fields["security.passwordMinLength"])
	assert.True(t, fields["system.defaultCurrency"])
	assert.True(t, fields["system.surveyBaseUrl"])
}

func TestDescribeIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Describe(errors.New("plain")))
}

func TestRegisterGinIsIdempotent(t *testing.T) {
	assert.NoError(t, RegisterGin())
	assert.NoError(t, RegisterGin())
}
