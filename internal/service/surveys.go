package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.uber.org/zap"
)

const maxTextAnswer = 5000

// SurveyService serves the token-addressed public survey.
type SurveyService struct {
	store       *store.Store
	campaigns   *CampaignService
	nominations *NominationService
	settings    *SettingsService
	events      EventPublisher
	metrics     *metrics.Metrics
	now         func() time.Time
	log         *zap.Logger
}

type PublicSurvey struct {
	CampaignName   string            `json:"campaignName"`
	Description    string            `json:"description"`
	Questions      []models.Question `json:"questions"`
	MaxNominations int               `json:"maxNominations"`
	Honorarium     models.Money      `json:"honorarium"`
	Currency       string            `json:"currency"`
	HcpFirstName   string            `json:"hcpFirstName"`
	Status         string            `json:"status"`
}

type SubmitInput struct {
	Answers     []models.Answer `json:"answers" binding:"required,dive"`
	Nominations []string        `json:"nominations" binding:"omitempty,max=50,dive,max=200"`
}

type SubmitResult struct {
	Status      models.ResponseStatus `json:"status"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

// resolve maps a token to its assignment and an active campaign.
func (s *SurveyService) resolve(ctx context.Context, token string) (*models.CampaignHcp, *models.Campaign, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cfg.System.MaintenanceMode {
		return nil, nil, fmt.Errorf("%w: surveys are under maintenance", ErrUnavailable)
	}
	ch, err := s.store.CampaignHcps.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, nil, err
	}
	c, err := s.store.Campaigns.FindByID(ctx, ch.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	if c.Status != models.CampaignActive {
		return nil, nil, fmt.Errorf("%w: this survey is %s", ErrGone, c.Status)
	}
	return ch, c, nil
}

func (s *SurveyService) Get(ctx context.Context, token string) (*PublicSurvey, error) {
	ch, c, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	hcp, err := s.store.Hcps.FindByID(ctx, ch.HcpID)
	if err != nil {
		return nil, err
	}
	status := "not_started"
	resp, err := s.store.Responses.FindByCampaignHcp(ctx, ch.ID)
	switch {
	case err == nil:
		status = string(resp.Status)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	// screening rules stay server-side
	questions := make([]models.Question, 0, len(c.Questions))
	for _, q := range c.Questions {
		q.DisqualifyOn = nil
		questions = append(questions, q)
	}
	return &PublicSurvey{
		CampaignName:   c.Name,
		Description:    c.Description,
		Questions:      questions,
		MaxNominations: c.MaxNominations,
		Honorarium:     c.Honorarium,
		Currency:       c.Currency,
		HcpFirstName:   hcp.FirstName,
		Status:         status,
	}, nil
}

// Start creates the in-progress response, or returns the existing one.
func (s *SurveyService) Start(ctx context.Context, token string) (*models.SurveyResponse, error) {
	ch, _, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, ch)
}

func (s *SurveyService) start(ctx context.Context, ch *models.CampaignHcp) (*models.SurveyResponse, error) {
	existing, err := s.store.Responses.FindByCampaignHcp(ctx, ch.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	r := &models.SurveyResponse{
		CampaignID:    ch.CampaignID,
		CampaignHcpID: ch.ID,
		HcpID:         ch.HcpID,
		Status:        models.ResponseInProgress,
		Answers:       []models.Answer{},
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Responses.Create(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// concurrent start for the same link
			return s.store.Responses.FindByCampaignHcp(ctx, ch.ID)
		}
		return nil, err
	}
	return r, nil
}

// Submit validates and stores the answers. A completed submission creates the
// honorarium payment and the nomination matches.
func (s *SurveyService) Submit(ctx context.Context, token string, in SubmitInput) (*SubmitResult, error) {
	ch, c, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	answers, screened, err := checkAnswers(c, in.Answers)
	if err != nil {
		return nil, err
	}
	nominations, err := checkNominations(c, in.Nominations)
	if err != nil {
		return nil, err
	}

	r, err := s.start(ctx, ch)
	if err != nil {
		return nil, err
	}
	if r.Status.Finished() {
		return nil, conflict("this survey has already been submitted")
	}

	now := s.now().UTC()
	r.Answers = answers
	r.Status = models.ResponseCompleted
	r.Nominations = nominations
	if screened {
		r.Status = models.ResponseScreenedOut
		r.Nominations = nil
	}
	r.CompletedAt = &now
	r.UpdatedAt = now
	if err := s.store.Responses.Update(ctx, r, models.ResponseInProgress); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, conflict("this survey has already been submitted")
		}
		return nil, err
	}
	s.metrics.SurveyFinished(string(r.Status))
	s.log.Info("survey submitted",
		zap.String("campaign", c.Code),
		zap.String("response", r.ID.Hex()),
		zap.String("status", string(r.Status)),
	)

	if r.Status == models.ResponseCompleted {
		s.afterCompletion(ctx, c, r)
	}
	return &SubmitResult{Status: r.Status, CompletedAt: r.CompletedAt}, nil
}

// afterCompletion runs the follow-ups of a completed response. The response is
// already stored, so failures are logged rather than returned to the HCP.
func (s *SurveyService) afterCompletion(ctx context.Context, c *models.Campaign, r *models.SurveyResponse) {
	if c.Honorarium.IsPositive() {
		p := &models.Payment{
			CampaignID: c.ID,
			HcpID:      r.HcpID,
			ResponseID: r.ID,
			Amount:     c.Honorarium,
			Currency:   c.Currency,
			Status:     models.PaymentPending,
			CreatedAt:  *r.CompletedAt,
			UpdatedAt:  *r.CompletedAt,
		}
		if err := s.store.Payments.Create(ctx, p); err != nil && !errors.Is(err, store.ErrDuplicate) {
			s.log.Error("create honorarium payment", zap.String("response", r.ID.Hex()), zap.Error(err))
		}
	}
	if len(r.Nominations) > 0 {
		if err := s.nominations.record(ctx, r); err != nil {
			s.log.Error("record nominations", zap.String("response", r.ID.Hex()), zap.Error(err))
		}
	}
	s.events.Broadcast(models.Event{
		Type:       models.EventSurveyCompleted,
		ClientID:   c.ClientID.Hex(),
		CampaignID: c.ID.Hex(),
		Data:       map[string]any{"responseId": r.ID.Hex(), "hcpId": r.HcpID.Hex()},
		At:         s.now().UTC(),
	})
	if err := s.campaigns.completeIfTargetReached(ctx, c.ID); err != nil {
		s.log.Error("check response target", zap.String("campaign", c.Code), zap.Error(err))
	}
}

// checkAnswers validates answers against the questions and returns them in
// question order. screened reports a disqualifying answer.
func checkAnswers(c *models.Campaign, in []models.Answer) (out []models.Answer, screened bool, err error) {
	given := make(map[string][]string, len(in))
	for i, a := range in {
		id := strings.TrimSpace(a.QuestionID)
		if _, ok := c.QuestionByID(id); !ok {
			return nil, false, invalid(fmt.Sprintf("answers[%d].questionId", i), "unknown question %q", id)
		}
		if _, dup := given[id]; dup {
			return nil, false, invalid(fmt.Sprintf("answers[%d].questionId", i), "question %q answered twice", id)
		}
		given[id] = nonEmpty(a.Values)
	}

	out = make([]models.Answer, 0, len(given))
	for _, q := range c.Questions {
		values := given[q.ID]
		field := "answers." + q.ID
		if len(values) == 0 {
			if q.Required {
				return nil, false, invalid(field, "is required")
			}
			continue
		}
		if err := checkAnswer(q, values); err != nil {
			return nil, false, invalid(field, "%s", err.Error())
		}
		for _, v := range values {
			if contains(q.DisqualifyOn, v) {
				screened = true
			}
		}
		out = append(out, models.Answer{QuestionID: q.ID, Values: values})
	}
	return out, screened, nil
}

func checkAnswer(q models.Question, values []string) error {
	switch q.Type {
	case models.QuestionSingleChoice:
		if len(values) != 1 {
			return errors.New("expects exactly one option")
		}
		if !contains(q.Options, values[0]) {
			return fmt.Errorf("%q is not an option", values[0])
		}
	case models.QuestionMultiChoice:
		seen := map[string]bool{}
		for _, v := range values {
			if !contains(q.Options, v) {
				return fmt.Errorf("%q is not an option", v)
			}
			if seen[v] {
				return fmt.Errorf("%q selected twice", v)
			}
			seen[v] = true
		}
	case models.QuestionScale:
		if len(values) != 1 {
			return errors.New("expects one value")
		}
		n, err := strconv.Atoi(values[0])
		if err != nil {
			return errors.New("must be a whole number")
		}
		if (q.Min != nil && n < *q.Min) || (q.Max != nil && n > *q.Max) {
			return fmt.Errorf("must be between %d and %d", deref(q.Min), deref(q.Max))
		}
	case models.QuestionText:
		if len(values) != 1 {
			return errors.New("expects one value")
		}
		if len(values[0]) > maxTextAnswer {
			return fmt.Errorf("must be at most %d characters", maxTextAnswer)
		}
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}

func checkNominations(c *models.Campaign, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, name := range nonEmpty(in) {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	if len(out) > c.MaxNominations {
		if c.MaxNominations == 0 {
			return nil, invalid("nominations", "this survey does not collect nominations")
		}
		return nil, invalid("nominations", "at most %d nominations are allowed", c.MaxNominations)
	}
	return out, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
