package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"
	"kol-campaign-api-server/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type HcpService struct {
	store *store.Store
	now   func() time.Time
	log   *zap.Logger
}

type HcpInput struct {
	FirstName      string          `json:"firstName" binding:"required,max=100"`
	LastName       string          `json:"lastName" binding:"required,max=100"`
	Email          string          `json:"email" binding:"required,email"`
	Specialty      string          `json:"specialty" binding:"max=120"`
	NPI            string          `json:"npi" binding:"omitempty,numeric,len=10"`
	Location       models.Location `json:"location"`
	DiseaseAreaIDs []string        `json:"diseaseAreaIds" binding:"omitempty,dive,objectid"`
}

func (s *HcpService) List(ctx context.Context, f store.HcpFilter) ([]models.Hcp, int64, error) {
	return s.store.Hcps.List(ctx, f)
}

func (s *HcpService) Get(ctx context.Context, id primitive.ObjectID) (*models.Hcp, error) {
	return s.store.Hcps.FindByID(ctx, id)
}

func (s *HcpService) Create(ctx context.Context, in HcpInput) (*models.Hcp, error) {
	areas, err := s.diseaseAreas(ctx, in.DiseaseAreaIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	h := &models.Hcp{CreatedAt: now}
	apply(h, in, areas, now)
	if err := s.store.Hcps.Create(ctx, h); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("an HCP with email %s already exists", h.Email)
		}
		return nil, err
	}
	return h, nil
}

func (s *HcpService) Update(ctx context.Context, id primitive.ObjectID, in HcpInput) (*models.Hcp, error) {
	h, err := s.store.Hcps.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	areas, err := s.diseaseAreas(ctx, in.DiseaseAreaIDs)
	if err != nil {
		return nil, err
	}
	apply(h, in, areas, s.now().UTC())
	if err := s.store.Hcps.Update(ctx, h); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("an HCP with email %s already exists", h.Email)
		}
		return nil, err
	}
	return h, nil
}

func apply(h *models.Hcp, in HcpInput, areas []primitive.ObjectID, now time.Time) {
	h.FirstName = strings.TrimSpace(in.FirstName)
	h.LastName = strings.TrimSpace(in.LastName)
	h.Email = strings.ToLower(strings.TrimSpace(in.Email))
	h.Specialty = strings.TrimSpace(in.Specialty)
	h.NPI = strings.TrimSpace(in.NPI)
	h.Location = models.Location{
		Institution: strings.TrimSpace(in.Location.Institution),
		City:        strings.TrimSpace(in.Location.City),
		Country:     strings.TrimSpace(in.Location.Country),
	}
	h.DiseaseAreaIDs = areas
	h.UpdatedAt = now
}

func (s *HcpService) diseaseAreas(ctx context.Context, raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for i, r := range raw {
		id, err := ParseID(fmt.Sprintf("diseaseAreaIds[%d]", i), r)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.DiseaseAreas.FindByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalid(fmt.Sprintf("diseaseAreaIds[%d]", i), "disease area does not exist")
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete refuses while the HCP is assigned to any campaign.
func (s *HcpService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.store.Hcps.FindByID(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CampaignHcps.CountByHcp(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflict("HCP is assigned to %d campaign(s)", n)
	}
	return s.store.Hcps.Delete(ctx, id)
}

type BulkSpecialtyResult struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Matched int64  `json:"matched"`
	Updated int64  `json:"updated"`
	DryRun  bool   `json:"dryRun"`
}

// BulkSpecialty renames a specialty on every HCP that has it. A dry run only counts.
func (s *HcpService) BulkSpecialty(ctx context.Context, from, to string, dryRun bool) (*BulkSpecialtyResult, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, invalid("from", "is required")
	}
	if to == "" {
		return nil, invalid("to", "is required")
	}
	res := &BulkSpecialtyResult{From: from, To: to, DryRun: dryRun}
	matched, err := s.store.Hcps.CountBySpecialty(ctx, from)
	if err != nil {
		return nil, err
	}
	res.Matched = matched
	if dryRun || matched == 0 || from == to {
		return res, nil
	}
	if res.Updated, err = s.store.Hcps.UpdateSpecialty(ctx, from, to); err != nil {
		return nil, fmt.Errorf("update specialty: %w", err)
	}
	s.log.Info("bulk specialty update", zap.String("from", from), zap.String("to", to), zap.Int64("updated", res.Updated))
	return res, nil
}

// ImportColumns are the CSV headers Import understands, in export order.
var ImportColumns = []string{"firstName", "lastName", "email", "specialty", "npi", "institution", "city", "country"}

type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

// Import creates HCPs from a CSV with a header row. Rows whose email already
// exists are skipped; invalid rows are reported by line and do not stop the import.
func (s *HcpService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("file", "is empty")
	}
	if err != nil {
		return nil, invalid("file", "cannot read CSV header: %v", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"firstname", "lastname", "email"} {
		if _, ok := col[required]; !ok {
			return nil, invalid("file", "missing %q column", required)
		}
	}

	res := &ImportResult{Errors: []ImportError{}}
	now := s.now().UTC()
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Errors = append(res.Errors, ImportError{Line: perr.StartLine, Message: perr.Err.Error()})
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read csv: %w", err)
		}
		// physical line the record starts on; quoted fields may span lines
		line, _ := cr.FieldPos(0)
		get := func(name string) string {
			i, ok := col[strings.ToLower(name)]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		h := &models.Hcp{
			FirstName: get("firstName"),
			LastName:  get("lastName"),
			Email:     strings.ToLower(get("email")),
			Specialty: get("specialty"),
			NPI:       get("npi"),
			Location:  models.Location{Institution: get("institution"), City: get("city"), Country: get("country")},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if h.FirstName == "" || h.LastName == "" {
			res.Errors = append(res.Errors, ImportError{Line: line, Message: "firstName and lastName are required"})
			continue
		}
		if validation.Var(h.Email, "required,email") != nil {
			res.Errors = append(res.Errors, ImportError{Line: line, Message: fmt.Sprintf("invalid email %q", h.Email)})
			continue
		}

		switch err := s.store.Hcps.Create(ctx, h); {
		case err == nil:
			res.Created++
		case errors.Is(err, store.ErrDuplicate):
			res.Skipped++
		default:
			return res, fmt.Errorf("import line %d: %w", line, err)
		}
	}
	s.log.Info("hcp import finished", zap.Int("created", res.Created), zap.Int("skipped", res.Skipped), zap.Int("errors", len(res.Errors)))
	return res, nil
}
