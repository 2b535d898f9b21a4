// Package store holds the repository interfaces the services depend on and
// their MongoDB implementations.
package store

import (
	"context"
	"errors"
	"time"

	"kol-campaign-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned by conditional updates when the document changed underneath.
	ErrStale = errors.New("document was modified concurrently")
)

// Page selects a window of a list. Limit 0 means no limit.
type Page struct {
	Limit int64
	Skip  int64
}

type UserFilter struct {
	Role     models.Role
	ClientID *primitive.ObjectID
	Query    string
	Page
}

type ClientFilter struct {
	Query  string
	Active *bool
	Page
}

type DiseaseAreaFilter struct {
	Active *bool
}

type HcpFilter struct {
	Query         string
	Specialty     string
	DiseaseAreaID *primitive.ObjectID
	Page
}

type CampaignFilter struct {
	Status   models.CampaignStatus
	ClientID *primitive.ObjectID
	Query    string
	Page
}

// CampaignIDs on the filters below restricts results to those campaigns.
// A nil slice means unrestricted, an empty one matches nothing.

type ResponseFilter struct {
	CampaignID  *primitive.ObjectID
	CampaignIDs []primitive.ObjectID
	HcpID       *primitive.ObjectID
	Status      models.ResponseStatus
	Page
}

type NominationFilter struct {
	CampaignID  *primitive.ObjectID
	CampaignIDs []primitive.ObjectID
	Status      models.NominationStatus
	Page
}

type PaymentFilter struct {
	CampaignID  *primitive.ObjectID
	CampaignIDs []primitive.ObjectID
	HcpID       *primitive.ObjectID
	Status      models.PaymentStatus
	Page
}

type Users interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	Update(ctx context.Context, u *models.User) error
	TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type Clients interface {
	Create(ctx context.Context, c *models.Client) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Client, error)
	List(ctx context.Context, f ClientFilter) ([]models.Client, int64, error)
	Update(ctx context.Context, c *models.Client) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type DiseaseAreas interface {
	Create(ctx context.Context, d *models.DiseaseArea) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.DiseaseArea, error)
	FindBySlug(ctx context.Context, slug string) (*models.DiseaseArea, error)
	List(ctx context.Context, f DiseaseAreaFilter) ([]models.DiseaseArea, error)
	Update(ctx context.Context, d *models.DiseaseArea) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Hcps interface {
	Create(ctx context.Context, h *models.Hcp) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hcp, error)
	FindByEmail(ctx context.Context, email string) (*models.Hcp, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Hcp, error)
	List(ctx context.Context, f HcpFilter) ([]models.Hcp, int64, error)
	// FindByNamePrefixes returns at most limit HCPs whose first or last name
	// starts with one of prefixes, ignoring case.
	FindByNamePrefixes(ctx context.Context, prefixes []string, limit int64) ([]models.Hcp, error)
	Update(ctx context.Context, h *models.Hcp) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
	CountBySpecialty(ctx context.Context, specialty string) (int64, error)
	// UpdateSpecialty renames every HCP whose specialty equals from.
	UpdateSpecialty(ctx context.Context, from, to string) (int64, error)
}

type Campaigns interface {
	Create(ctx context.Context, c *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	List(ctx context.Context, f CampaignFilter) ([]models.Campaign, int64, error)
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountByStatus(ctx context.Context, clientID *primitive.ObjectID) (map[models.CampaignStatus]int64, error)
	CountByClient(ctx context.Context, clientID primitive.ObjectID) (int64, error)
	IDsByClient(ctx context.Context, clientID primitive.ObjectID) ([]primitive.ObjectID, error)
}

type CampaignHcps interface {
	// Add inserts the assignments that do not exist yet and returns those.
	Add(ctx context.Context, items []models.CampaignHcp) ([]models.CampaignHcp, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CampaignHcp, error)
	FindByToken(ctx context.Context, token string) (*models.CampaignHcp, error)
	Find(ctx context.Context, campaignID, hcpID primitive.ObjectID) (*models.CampaignHcp, error)
	ListByCampaign(ctx context.Context, campaignID primitive.ObjectID) ([]models.CampaignHcp, error)
	CountByCampaign(ctx context.Context, campaignID primitive.ObjectID) (int64, error)
	CountByHcp(ctx context.Context, hcpID primitive.ObjectID) (int64, error)
	// CountHcps counts the distinct HCPs assigned to any of campaignIDs.
	CountHcps(ctx context.Context, campaignIDs []primitive.ObjectID) (int64, error)
	Remove(ctx context.Context, id primitive.ObjectID) error
	// MarkEmailSent sets emailSentAt once. It reports false when it was already set.
	MarkEmailSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	RecordReminder(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type Responses interface {
	Create(ctx context.Context, r *models.SurveyResponse) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.SurveyResponse, error)
	FindByCampaignHcp(ctx context.Context, campaignHcpID primitive.ObjectID) (*models.SurveyResponse, error)
	List(ctx context.Context, f ResponseFilter) ([]models.SurveyResponse, int64, error)
	// Update replaces r if its stored status is still from, else ErrStale.
	Update(ctx context.Context, r *models.SurveyResponse, from models.ResponseStatus) error
	CountByStatus(ctx context.Context, f ResponseFilter) (map[models.ResponseStatus]int64, error)
}

type Nominations interface {
	CreateMany(ctx context.Context, items []models.NominationMatch) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.NominationMatch, error)
	List(ctx context.Context, f NominationFilter) ([]models.NominationMatch, int64, error)
	Update(ctx context.Context, n *models.NominationMatch) error
	TopNominees(ctx context.Context, campaignID primitive.ObjectID, limit int64) ([]models.NomineeCount, error)
}

type Payments interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	List(ctx context.Context, f PaymentFilter) ([]models.Payment, int64, error)
	// Update replaces p if its stored status is still from, else ErrStale.
	Update(ctx context.Context, p *models.Payment, from models.PaymentStatus) error
	Totals(ctx context.Context, f PaymentFilter) ([]models.PaymentTotal, error)
}

type Settings interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
}

// Store bundles every repository.
type Store struct {
	Users        Users
	Clients      Clients
	DiseaseAreas DiseaseAreas
	Hcps         Hcps
	Campaigns    Campaigns
	CampaignHcps CampaignHcps
	Responses    Responses
	Nominations  Nominations
	Payments     Payments
	Settings     Settings
}
