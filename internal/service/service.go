// Package service implements the platform's use cases on top of the store.
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/cache"
	"kol-campaign-api-server/internal/mailer"
	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/queue"
	"kol-campaign-api-server/internal/ratelimit"
	"kol-campaign-api-server/internal/store"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized      = errors.New("invalid email or password")
	ErrForbidden         = errors.New("you do not have permission to perform this action")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrGone              = errors.New("no longer available")
	ErrUnavailable       = errors.New("temporarily unavailable")
)

// ValidationError reports input that breaks a business rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// RateLimitError is returned when a caller exceeded its allowance.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string { return "too many attempts, retry in " + e.RetryAfter + "s" }

// Actor is the authenticated caller.
type Actor struct {
	UserID   primitive.ObjectID
	Email    string
	Role     models.Role
	ClientID *primitive.ObjectID
}

func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// canSee reports whether the actor may read data owned by clientID.
func (a Actor) canSee(clientID primitive.ObjectID) bool {
	if a.IsStaff() {
		return true
	}
	return a.ClientID != nil && *a.ClientID == clientID
}

// ActorFromClaims rebuilds the caller from a verified token.
func ActorFromClaims(c *auth.Claims) (Actor, error) {
	id, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return Actor{}, fmt.Errorf("token user id: %w", err)
	}
	a := Actor{UserID: id, Email: c.Email, Role: c.Role}
	if c.ClientID != "" {
		cid, err := primitive.ObjectIDFromHex(c.ClientID)
		if err != nil {
			return Actor{}, fmt.Errorf("token client id: %w", err)
		}
		a.ClientID = &cid
	}
	return a, nil
}

// EventPublisher pushes realtime events to connected dashboards.
type EventPublisher interface {
	Broadcast(ev models.Event)
}

type nopEvents struct{}

func (nopEvents) Broadcast(models.Event) {}

// ParseID converts a hex id, reporting field on failure.
func ParseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, invalid(field, "must be a valid id")
	}
	return id, nil
}

// NewSurveyToken returns 128 bits of randomness as 32 hex characters.
func NewSurveyToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newCampaignCode() string {
	return fmt.Sprintf("CMP-%s", strings.ToUpper(uuid.New().String()[:8]))
}

func newJobID() string { return uuid.NewString() }

// Deps are the collaborators shared by every service.
type Deps struct {
	Store     *store.Store
	Tokens    *auth.TokenManager
	Limiter   ratelimit.Limiter
	Cache     cache.Cache
	CacheTTL  time.Duration
	Publisher queue.Publisher
	Events    EventPublisher
	Uploader  Uploader
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	// Defaults seed the settings until an admin saves them.
	Defaults models.Settings
	// NewSender builds the mail transport from the current email settings.
	NewSender func(models.EmailSettings) mailer.Sender
	Now       func() time.Time
}

type Services struct {
	Users         *UserService
	Clients       *ClientService
	DiseaseAreas  *DiseaseAreaService
	Hcps          *HcpService
	Campaigns     *CampaignService
	Surveys       *SurveyService
	Responses     *ResponseService
	Nominations   *NominationService
	Payments      *PaymentService
	Settings      *SettingsService
	Dashboard     *DashboardService
	Exports       *ExportService
	Notifications *NotificationService
}

// New wires the services. Optional collaborators fall back to no-op versions.
func New(d Deps) *Services {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Minute
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.AllowAll{}
	}
	if d.Events == nil {
		d.Events = nopEvents{}
	}
	if d.NewSender == nil {
		log := d.Log
		d.NewSender = func(models.EmailSettings) mailer.Sender { return mailer.LogSender{Log: log} }
	}
	if d.Defaults.ID == "" {
		d.Defaults = models.DefaultSettings()
	}

	s := &Services{}
	s.Settings = &SettingsService{store: d.Store.Settings, cache: d.Cache, ttl: d.CacheTTL, defaults: d.Defaults, now: d.Now}
	s.Users = &UserService{store: d.Store, tokens: d.Tokens, limiter: d.Limiter, settings: s.Settings, now: d.Now, log: d.Log}
	s.Clients = &ClientService{store: d.Store, now: d.Now}
	s.DiseaseAreas = &DiseaseAreaService{store: d.Store, now: d.Now}
	s.Hcps = &HcpService{store: d.Store, now: d.Now, log: d.Log}
	s.Campaigns = &CampaignService{
		store: d.Store, publisher: d.Publisher, events: d.Events, settings: s.Settings,
		metrics: d.Metrics, now: d.Now, log: d.Log,
	}
	s.Nominations = &NominationService{store: d.Store, matcher: NewMatcher(), now: d.Now}
	s.Surveys = &SurveyService{
		store: d.Store, campaigns: s.Campaigns, nominations: s.Nominations, settings: s.Settings,
		events: d.Events, metrics: d.Metrics, now: d.Now, log: d.Log,
	}
	s.Responses = &ResponseService{store: d.Store, campaigns: s.Campaigns, now: d.Now}
	s.Payments = &PaymentService{store: d.Store, campaigns: s.Campaigns, now: d.Now}
	s.Dashboard = &DashboardService{store: d.Store, cache: d.Cache, now: d.Now, log: d.Log}
	s.Exports = &ExportService{store: d.Store, campaigns: s.Campaigns, uploader: d.Uploader, now: d.Now}
	s.Notifications = &NotificationService{
		store: d.Store, settings: s.Settings, newSender: d.NewSender, metrics: d.Metrics, now: d.Now, log: d.Log,
	}
	return s
}
