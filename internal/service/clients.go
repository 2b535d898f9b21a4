package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClientService struct {
	store *store.Store
	now   func() time.Time
}

type ClientInput struct {
	Name         string            `json:"name" binding:"required,max=200"`
	Type         models.ClientType `json:"type" binding:"required,oneof=pharma biotech medtech agency other"`
	ContactEmail string            `json:"contactEmail" binding:"omitempty,email"`
	Active       *bool             `json:"active"`
}

func (s *ClientService) List(ctx context.Context, f store.ClientFilter) ([]models.Client, int64, error) {
	return s.store.Clients.List(ctx, f)
}

// Get lets client users read only their own organisation.
func (s *ClientService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Client, error) {
	if !actor.canSee(id) {
		return nil, store.ErrNotFound
	}
	return s.store.Clients.FindByID(ctx, id)
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	now := s.now().UTC()
	c := &models.Client{
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Active:       in.Active == nil || *in.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Clients.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, id primitive.ObjectID, in ClientInput) (*models.Client, error) {
	c, err := s.store.Clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Type = in.Type
	c.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if in.Active != nil {
		c.Active = *in.Active
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Clients.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete refuses while campaigns or users still reference the client.
func (s *ClientService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.store.Clients.FindByID(ctx, id); err != nil {
		return err
	}
	n, err := s.store.Campaigns.CountByClient(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflict("client has %d campaign(s); archive or move them first", n)
	}
	_, users, err := s.store.Users.List(ctx, store.UserFilter{ClientID: &id, Page: store.Page{Limit: 1}})
	if err != nil {
		return err
	}
	if users > 0 {
		return conflict("client still has %d user account(s)", users)
	}
	return s.store.Clients.Delete(ctx, id)
}

type DiseaseAreaService struct {
	store *store.Store
	now   func() time.Time
}

type DiseaseAreaInput struct {
	Name        string `json:"name" binding:"required,max=120"`
	Slug        string `json:"slug" binding:"omitempty,slug,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Active      *bool  `json:"active"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its words with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (s *DiseaseAreaService) List(ctx context.Context, activeOnly bool) ([]models.DiseaseArea, error) {
	f := store.DiseaseAreaFilter{}
	if activeOnly {
		active := true
		f.Active = &active
	}
	return s.store.DiseaseAreas.List(ctx, f)
}

func (s *DiseaseAreaService) Create(ctx context.Context, in DiseaseAreaInput) (*models.DiseaseArea, error) {
	now := s.now().UTC()
	d := &models.DiseaseArea{
		Name:        strings.TrimSpace(in.Name),
		Slug:        in.Slug,
		Description: strings.TrimSpace(in.Description),
		Active:      in.Active == nil || *in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.Slug == "" {
		d.Slug = Slugify(d.Name)
	}
	if d.Slug == "" {
		return nil, invalid("slug", "cannot be derived from the name")
	}
	if err := s.store.DiseaseAreas.Create(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("disease area %q already exists", d.Slug)
		}
		return nil, err
	}
	return d, nil
}

func (s *DiseaseAreaService) Update(ctx context.Context, id primitive.ObjectID, in DiseaseAreaInput) (*models.DiseaseArea, error) {
	d, err := s.store.DiseaseAreas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Name = strings.TrimSpace(in.Name)
	d.Description = strings.TrimSpace(in.Description)
	if in.Slug != "" {
		d.Slug = in.Slug
	}
	if in.Active != nil {
		d.Active = *in.Active
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.store.DiseaseAreas.Update(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("disease area %q already exists", d.Slug)
		}
		return nil, err
	}
	return d, nil
}

// Delete refuses while HCPs are tagged with the area; deactivate it instead.
func (s *DiseaseAreaService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.store.DiseaseAreas.FindByID(ctx, id); err != nil {
		return err
	}
	_, tagged, err := s.store.Hcps.List(ctx, store.HcpFilter{DiseaseAreaID: &id, Page: store.Page{Limit: 1}})
	if err != nil {
		return err
	}
	if tagged > 0 {
		return conflict("%d HCP(s) are tagged with this disease area", tagged)
	}
	return s.store.DiseaseAreas.Delete(ctx, id)
}
