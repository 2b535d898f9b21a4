package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/queue"
	"kol-campaign-api-server/internal/store"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CampaignService struct {
	store     *store.Store
	publisher queue.Publisher
	events    EventPublisher
	settings  *SettingsService
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *zap.Logger
}

type CreateCampaignInput struct {
	ClientID        string            `json:"clientId" binding:"required,objectid"`
	DiseaseAreaID   string            `json:"diseaseAreaId" binding:"omitempty,objectid"`
	Name            string            `json:"name" binding:"required,max=200"`
	Description     string            `json:"description" binding:"max=5000"`
	StartDate       *time.Time        `json:"startDate"`
	EndDate         *time.Time        `json:"endDate"`
	Questions       []models.Question `json:"questions" binding:"omitempty,dive"`
	MaxNominations  int               `json:"maxNominations" binding:"min=0,max=20"`
	Honorarium      string            `json:"honorarium" binding:"omitempty,money"`
	Currency        string            `json:"currency" binding:"omitempty,len=3,alpha,uppercase"`
	TargetResponses int               `json:"targetResponses" binding:"min=0"`
}

// UpdateCampaignInput changes only the fields that are set.
type UpdateCampaignInput struct {
	DiseaseAreaID   *string            `json:"diseaseAreaId"`
	Name            *string            `json:"name" binding:"omitempty,min=1,max=200"`
	Description     *string            `json:"description" binding:"omitempty,max=5000"`
	StartDate       *time.Time         `json:"startDate"`
	EndDate         *time.Time         `json:"endDate"`
	Questions       *[]models.Question `json:"questions" binding:"omitempty,dive"`
	MaxNominations  *int               `json:"maxNominations" binding:"omitempty,min=0,max=20"`
	Honorarium      *string            `json:"honorarium" binding:"omitempty,money"`
	Currency        *string            `json:"currency" binding:"omitempty,len=3,alpha,uppercase"`
	TargetResponses *int               `json:"targetResponses" binding:"omitempty,min=0"`
}

// visible loads a campaign the actor may read. Other tenants' campaigns look missing.
func (s *CampaignService) visible(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Campaign, error) {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canSee(c.ClientID) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// scope returns the campaign ids a client user may see, or nil for staff.
func (s *CampaignService) scope(ctx context.Context, actor Actor) ([]primitive.ObjectID, error) {
	if actor.IsStaff() {
		return nil, nil
	}
	if actor.ClientID == nil {
		return []primitive.ObjectID{}, nil
	}
	return s.store.Campaigns.IDsByClient(ctx, *actor.ClientID)
}

func (s *CampaignService) List(ctx context.Context, actor Actor, f store.CampaignFilter) ([]models.Campaign, int64, error) {
	if !actor.IsStaff() {
		if actor.ClientID == nil {
			return []models.Campaign{}, 0, nil
		}
		f.ClientID = actor.ClientID
	}
	return s.store.Campaigns.List(ctx, f)
}

func (s *CampaignService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Campaign, error) {
	return s.visible(ctx, actor, id)
}

func (s *CampaignService) Create(ctx context.Context, actor Actor, in CreateCampaignInput) (*models.Campaign, error) {
	clientID, err := ParseID("clientId", in.ClientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("clientId", "client does not exist")
		}
		return nil, err
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Campaign{
		ClientID:        clientID,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Status:          models.CampaignDraft,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Questions:       normalizeQuestions(in.Questions),
		MaxNominations:  in.MaxNominations,
		Honorarium:      models.MoneyFrom(decimal.Zero),
		Currency:        in.Currency,
		TargetResponses: in.TargetResponses,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.Currency == "" {
		c.Currency = cfg.System.DefaultCurrency
	}
	if in.Honorarium != "" {
		if c.Honorarium, err = models.NewMoney(in.Honorarium); err != nil {
			return nil, invalid("honorarium", "must be a valid amount")
		}
	}
	if in.DiseaseAreaID != "" {
		if c.DiseaseAreaID, err = s.diseaseArea(ctx, in.DiseaseAreaID); err != nil {
			return nil, err
		}
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		c.ID = primitive.NilObjectID
		c.Code = newCampaignCode()
		err = s.store.Campaigns.Create(ctx, c)
		if !errors.Is(err, store.ErrDuplicate) || attempt == 2 {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Update(ctx context.Context, id primitive.ObjectID, in UpdateCampaignInput) (*models.Campaign, error) {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CampaignArchived {
		return nil, conflict("archived campaigns are read-only")
	}

	if in.Questions != nil {
		qs := normalizeQuestions(*in.Questions)
		if c.Status != models.CampaignDraft && !reflect.DeepEqual(qs, normalizeQuestions(c.Questions)) {
			return nil, conflict("questions can only be changed while the campaign is a draft")
		}
		c.Questions = qs
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		c.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		c.EndDate = in.EndDate
	}
	if in.MaxNominations != nil {
		c.MaxNominations = *in.MaxNominations
	}
	if in.TargetResponses != nil {
		c.TargetResponses = *in.TargetResponses
	}
	if in.Honorarium != nil || in.Currency != nil {
		if c.Status != models.CampaignDraft {
			return nil, conflict("honorarium can only be changed while the campaign is a draft")
		}
		if in.Honorarium != nil {
			if c.Honorarium, err = models.NewMoney(*in.Honorarium); err != nil {
				return nil, invalid("honorarium", "must be a valid amount")
			}
		}
		if in.Currency != nil {
			c.Currency = *in.Currency
		}
	}
	if in.DiseaseAreaID != nil {
		c.DiseaseAreaID = nil
		if *in.DiseaseAreaID != "" {
			if c.DiseaseAreaID, err = s.diseaseArea(ctx, *in.DiseaseAreaID); err != nil {
				return nil, err
			}
		}
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now().UTC()
	if err := s.store.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a draft campaign and its assignments.
func (s *CampaignService) Delete(ctx context.Context, id primitive.ObjectID) error {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != models.CampaignDraft {
		return conflict("only draft campaigns can be deleted; archive it instead")
	}
	assigned, err := s.store.CampaignHcps.ListByCampaign(ctx, id)
	if err != nil {
		return err
	}
	for _, ch := range assigned {
		if err := s.store.CampaignHcps.Remove(ctx, ch.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove assignment %s: %w", ch.ID.Hex(), err)
		}
	}
	return s.store.Campaigns.Delete(ctx, id)
}

func (s *CampaignService) diseaseArea(ctx context.Context, raw string) (*primitive.ObjectID, error) {
	id, err := ParseID("diseaseAreaId", raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.DiseaseAreas.FindByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("diseaseAreaId", "disease area does not exist")
		}
		return nil, err
	}
	return &id, nil
}

func normalizeQuestions(in []models.Question) []models.Question {
	out := make([]models.Question, 0, len(in))
	for _, q := range in {
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		q.Options = trimAll(q.Options)
		q.DisqualifyOn = trimAll(q.DisqualifyOn)
		out = append(out, q)
	}
	return out
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func validateCampaign(c *models.Campaign) error {
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return invalid("endDate", "must not be before startDate")
	}
	if c.Honorarium.IsNegative() {
		return invalid("honorarium", "must not be negative")
	}
	return validateQuestions(c.Questions)
}

func validateQuestions(qs []models.Question) error {
	seen := map[string]bool{}
	for i, q := range qs {
		field := fmt.Sprintf("questions[%d]", i)
		if q.ID == "" || q.Text == "" {
			return invalid(field, "id and text are required")
		}
		if seen[q.ID] {
			return invalid(field+".id", "duplicate question id %q", q.ID)
		}
		seen[q.ID] = true

		switch q.Type {
		case models.QuestionSingleChoice, models.QuestionMultiChoice:
			if len(q.Options) < 2 {
				return invalid(field+".options", "choice questions need at least two options")
			}
			opts := map[string]bool{}
			for _, o := range q.Options {
				if o == "" || opts[o] {
					return invalid(field+".options", "options must be unique and non-empty")
				}
				opts[o] = true
			}
			for _, d := range q.DisqualifyOn {
				if !opts[d] {
					return invalid(field+".disqualifyOn", "%q is not one of the options", d)
				}
			}
		case models.QuestionScale:
			if q.Min == nil || q.Max == nil || *q.Min >= *q.Max {
				return invalid(field, "scale questions need min < max")
			}
			if len(q.Options) > 0 {
				return invalid(field+".options", "scale questions take no options")
			}
			for _, d := range q.DisqualifyOn {
				n, err := strconv.Atoi(d)
				if err != nil || n < *q.Min || n > *q.Max {
					return invalid(field+".disqualifyOn", "%q is outside the scale", d)
				}
			}
		case models.QuestionText:
			if len(q.Options) > 0 || len(q.DisqualifyOn) > 0 {
				return invalid(field, "text questions take no options")
			}
		default:
			return invalid(field+".type", "unknown question type %q", q.Type)
		}
	}
	return nil
}

type TransitionResult struct {
	Campaign *models.Campaign `json:"campaign"`
	Queued   int              `json:"queuedInvitations"`
}

// Transition moves a campaign along its status machine. Activating it queues
// invitations for every assigned HCP that has not been emailed yet.
func (s *CampaignService) Transition(ctx context.Context, id primitive.ObjectID, to models.CampaignStatus) (*TransitionResult, error) {
	if !to.Valid() {
		return nil, invalid("status", "unknown campaign status %q", to)
	}
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := c.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	if to == models.CampaignActive && from == models.CampaignDraft {
		if len(c.Questions) == 0 {
			return nil, invalid("questions", "a campaign needs at least one question before launch")
		}
		n, err := s.store.CampaignHcps.CountByCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalid("hcps", "assign at least one HCP before launch")
		}
	}

	now := s.now().UTC()
	c.Status = to
	c.UpdatedAt = now
	switch to {
	case models.CampaignActive:
		if c.LaunchedAt == nil {
			c.LaunchedAt = &now
		}
	case models.CampaignCompleted:
		c.CompletedAt = &now
	}
	if err := s.store.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("campaign status changed", zap.String("campaign", c.Code), zap.String("from", string(from)), zap.String("to", string(to)))
	s.broadcastStatus(c, from)

	res := &TransitionResult{Campaign: c}
	if to == models.CampaignActive {
		assigned, err := s.store.CampaignHcps.ListByCampaign(ctx, id)
		if err != nil {
			return res, err
		}
		pending := make([]models.CampaignHcp, 0, len(assigned))
		for _, ch := range assigned {
			if ch.EmailSentAt == nil {
				pending = append(pending, ch)
			}
		}
		if res.Queued, err = s.enqueue(ctx, models.EmailInvitation, pending); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *CampaignService) broadcastStatus(c *models.Campaign, from models.CampaignStatus) {
	s.events.Broadcast(models.Event{
		Type:       models.EventCampaignStatusChanged,
		ClientID:   c.ClientID.Hex(),
		CampaignID: c.ID.Hex(),
		Data:       map[string]any{"code": c.Code, "from": from, "to": c.Status},
		At:         s.now().UTC(),
	})
}

// completeIfTargetReached closes an active campaign once enough responses completed.
func (s *CampaignService) completeIfTargetReached(ctx context.Context, id primitive.ObjectID) error {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != models.CampaignActive || c.TargetResponses <= 0 {
		return nil
	}
	counts, err := s.store.Responses.CountByStatus(ctx, store.ResponseFilter{CampaignID: &id})
	if err != nil {
		return err
	}
	if counts[models.ResponseCompleted]+counts[models.ResponseFlagged] < int64(c.TargetResponses) {
		return nil
	}
	now := s.now().UTC()
	c.Status = models.CampaignCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now
	if err := s.store.Campaigns.Update(ctx, c); err != nil {
		return err
	}
	s.log.Info("campaign reached its response target", zap.String("campaign", c.Code), zap.Int("target", c.TargetResponses))
	s.broadcastStatus(c, models.CampaignActive)
	return nil
}

func (s *CampaignService) enqueue(ctx context.Context, kind models.EmailKind, targets []models.CampaignHcp) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	if s.publisher == nil {
		s.log.Warn("no email publisher configured; jobs dropped", zap.String("kind", string(kind)), zap.Int("count", len(targets)))
		return 0, nil
	}
	queued := 0
	for _, ch := range targets {
		job := models.EmailJob{
			ID:            newJobID(),
			Kind:          kind,
			CampaignHcpID: ch.ID.Hex(),
			RequestedAt:   s.now().UTC(),
		}
		if err := s.publisher.Publish(ctx, job); err != nil {
			return queued, fmt.Errorf("publish %s for %s: %w", kind, ch.ID.Hex(), err)
		}
		s.metrics.EmailQueued(string(kind))
		queued++
	}
	return queued, nil
}

type AssignedHcp struct {
	models.CampaignHcp
	Hcp            *models.Hcp           `json:"hcp,omitempty"`
	SurveyURL      string                `json:"surveyUrl"`
	ResponseStatus models.ResponseStatus `json:"responseStatus,omitempty"`
}

// SurveyURL joins the configured base with a token.
func SurveyURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/" + token
}

func (s *CampaignService) ListHcps(ctx context.Context, actor Actor, id primitive.ObjectID) ([]AssignedHcp, error) {
	if _, err := s.visible(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.assigned(ctx, id)
}

func (s *CampaignService) assigned(ctx context.Context, id primitive.ObjectID) ([]AssignedHcp, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	chs, err := s.store.CampaignHcps.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(chs))
	for _, ch := range chs {
		ids = append(ids, ch.HcpID)
	}
	hcps, err := s.store.Hcps.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.Hcp, len(hcps))
	for i := range hcps {
		byID[hcps[i].ID] = &hcps[i]
	}
	responses, _, err := s.store.Responses.List(ctx, store.ResponseFilter{CampaignID: &id})
	if err != nil {
		return nil, err
	}
	status := make(map[primitive.ObjectID]models.ResponseStatus, len(responses))
	for _, r := range responses {
		status[r.CampaignHcpID] = r.Status
	}

	out := make([]AssignedHcp, 0, len(chs))
	for _, ch := range chs {
		out = append(out, AssignedHcp{
			CampaignHcp:    ch,
			Hcp:            byID[ch.HcpID],
			SurveyURL:      SurveyURL(cfg.System.SurveyBaseURL, ch.SurveyToken),
			ResponseStatus: status[ch.ID],
		})
	}
	return out, nil
}

type AssignResult struct {
	Added    int `json:"added"`
	Existing int `json:"existing"`
	Queued   int `json:"queuedInvitations"`
}

// AssignHcps is idempotent: pairs that already exist keep their token.
func (s *CampaignService) AssignHcps(ctx context.Context, id primitive.ObjectID, rawIDs []string) (*AssignResult, error) {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CampaignCompleted || c.Status == models.CampaignArchived {
		return nil, conflict("cannot assign HCPs to a %s campaign", c.Status)
	}
	if len(rawIDs) == 0 {
		return nil, invalid("hcpIds", "at least one HCP is required")
	}

	seen := map[primitive.ObjectID]bool{}
	ids := make([]primitive.ObjectID, 0, len(rawIDs))
	for i, raw := range rawIDs {
		hid, err := ParseID(fmt.Sprintf("hcpIds[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		if !seen[hid] {
			seen[hid] = true
			ids = append(ids, hid)
		}
	}
	found, err := s.store.Hcps.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		exists := map[primitive.ObjectID]bool{}
		for _, h := range found {
			exists[h.ID] = true
		}
		for _, hid := range ids {
			if !exists[hid] {
				return nil, invalid("hcpIds", "HCP %s does not exist", hid.Hex())
			}
		}
	}

	now := s.now().UTC()
	items := make([]models.CampaignHcp, 0, len(ids))
	for _, hid := range ids {
		items = append(items, models.CampaignHcp{
			CampaignID:  id,
			HcpID:       hid,
			SurveyToken: NewSurveyToken(),
			CreatedAt:   now,
		})
	}
	added, err := s.store.CampaignHcps.Add(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("assign hcps: %w", err)
	}

	res := &AssignResult{Added: len(added), Existing: len(ids) - len(added)}
	if c.Status == models.CampaignActive {
		if res.Queued, err = s.enqueue(ctx, models.EmailInvitation, added); err != nil {
			return res, err
		}
	}
	return res, nil
}

// RemoveHcp unassigns an HCP that has not started the survey.
func (s *CampaignService) RemoveHcp(ctx context.Context, id, hcpID primitive.ObjectID) error {
	ch, err := s.store.CampaignHcps.Find(ctx, id, hcpID)
	if err != nil {
		return err
	}
	_, err = s.store.Responses.FindByCampaignHcp(ctx, ch.ID)
	switch {
	case err == nil:
		return conflict("the HCP has already responded to this campaign")
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	return s.store.CampaignHcps.Remove(ctx, ch.ID)
}

type ReminderResult struct {
	Eligible int `json:"eligible"`
	Queued   int `json:"queued"`
}

// SendReminders queues reminders for invited HCPs who have not finished the
// survey, were last contacted at least ReminderIntervalDays ago and have not
// reached MaxReminders.
func (s *CampaignService) SendReminders(ctx context.Context, id primitive.ObjectID) (*ReminderResult, error) {
	c, err := s.store.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignActive {
		return nil, conflict("reminders can only be sent for active campaigns")
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	chs, err := s.store.CampaignHcps.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	responses, _, err := s.store.Responses.List(ctx, store.ResponseFilter{CampaignID: &id})
	if err != nil {
		return nil, err
	}
	finished := map[primitive.ObjectID]bool{}
	for _, r := range responses {
		if r.Status.Finished() {
			finished[r.CampaignHcpID] = true
		}
	}

	now := s.now().UTC()
	due := make([]models.CampaignHcp, 0)
	for _, ch := range chs {
		if !finished[ch.ID] && reminderDue(&ch, cfg.Email, now) {
			due = append(due, ch)
		}
	}
	res := &ReminderResult{Eligible: len(due)}
	res.Queued, err = s.enqueue(ctx, models.EmailReminder, due)
	return res, err
}

func reminderDue(ch *models.CampaignHcp, es models.EmailSettings, now time.Time) bool {
	last := ch.LastContactAt()
	if ch.EmailSentAt == nil || last == nil {
		return false
	}
	if ch.ReminderCount >= es.MaxReminders {
		return false
	}
	interval := time.Duration(es.ReminderIntervalDays) * 24 * time.Hour
	return !last.Add(interval).After(now)
}

// RemindActive sends reminders for every active campaign.
func (s *CampaignService) RemindActive(ctx context.Context) (map[string]*ReminderResult, error) {
	active, _, err := s.store.Campaigns.List(ctx, store.CampaignFilter{Status: models.CampaignActive})
	if err != nil {
		return nil, err
	}
	out := make(map[string]*ReminderResult, len(active))
	for _, c := range active {
		res, err := s.SendReminders(ctx, c.ID)
		if err != nil {
			return out, fmt.Errorf("campaign %s: %w", c.Code, err)
		}
		out[c.Code] = res
	}
	return out, nil
}

type SurveyLink struct {
	CampaignCode string `json:"campaignCode"`
	CampaignName string `json:"campaignName"`
	HcpName      string `json:"hcpName"`
	Email        string `json:"email"`
	URL          string `json:"url"`
	Status       string `json:"status"`
}

// SurveyLinks lists the links of one campaign, or of every active campaign when id is nil.
func (s *CampaignService) SurveyLinks(ctx context.Context, id *primitive.ObjectID) ([]SurveyLink, error) {
	var campaigns []models.Campaign
	if id != nil {
		c, err := s.store.Campaigns.FindByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		campaigns = []models.Campaign{*c}
	} else {
		var err error
		if campaigns, _, err = s.store.Campaigns.List(ctx, store.CampaignFilter{Status: models.CampaignActive}); err != nil {
			return nil, err
		}
	}

	out := make([]SurveyLink, 0)
	for _, c := range campaigns {
		assigned, err := s.assigned(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: %w", c.Code, err)
		}
		for _, a := range assigned {
			link := SurveyLink{CampaignCode: c.Code, CampaignName: c.Name, URL: a.SurveyURL, Status: "not_started"}
			if a.Hcp != nil {
				link.HcpName = a.Hcp.FullName()
				link.Email = a.Hcp.Email
			}
			if a.ResponseStatus != "" {
				link.Status = string(a.ResponseStatus)
			}
			out = append(out, link)
		}
	}
	return out, nil
}

type KolRanking struct {
	Rank        int         `json:"rank"`
	Hcp         *models.Hcp `json:"hcp"`
	Nominations int64       `json:"nominations"`
}

// Kols ranks HCPs by confirmed nominations within a campaign.
func (s *CampaignService) Kols(ctx context.Context, actor Actor, id primitive.ObjectID, limit int64) ([]KolRanking, error) {
	if _, err := s.visible(ctx, actor, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	counts, err := s.store.Nominations.TopNominees(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.HcpID)
	}
	hcps, err := s.store.Hcps.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.Hcp, len(hcps))
	for i := range hcps {
		byID[hcps[i].ID] = &hcps[i]
	}

	out := make([]KolRanking, 0, len(counts))
	for i, c := range counts {
		out = append(out, KolRanking{Rank: i + 1, Hcp: byID[c.HcpID], Nominations: c.Count})
	}
	return out, nil
}
