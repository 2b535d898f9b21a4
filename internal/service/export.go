package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Uploader stores a finished export and returns where it can be downloaded.
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, name, contentType string) (string, error)
}

type ExportService struct {
	store     *store.Store
	campaigns *CampaignService
	uploader  Uploader
	now       func() time.Time
}

// FileName is the download name of a campaign's export.
func (s *ExportService) FileName(c *models.Campaign) string {
	return fmt.Sprintf("%s-responses-%s.csv", strings.ToLower(c.Code), s.now().UTC().Format("20060102-150405"))
}

// WriteCSV writes one row per response: HCP identity, status, timestamps, one
// column per question and the nominations.
func (s *ExportService) WriteCSV(ctx context.Context, actor Actor, campaignID primitive.ObjectID, w io.Writer) (*models.Campaign, error) {
	c, err := s.campaigns.visible(ctx, actor, campaignID)
	if err != nil {
		return nil, err
	}
	return c, s.write(ctx, c, w)
}

func (s *ExportService) write(ctx context.Context, c *models.Campaign, w io.Writer) error {
	responses, _, err := s.store.Responses.List(ctx, store.ResponseFilter{CampaignID: &c.ID})
	if err != nil {
		return err
	}
	ids := make([]primitive.ObjectID, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.HcpID)
	}
	hcps, err := s.store.Hcps.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]models.Hcp, len(hcps))
	for _, h := range hcps {
		byID[h.ID] = h
	}

	cw := csv.NewWriter(w)
	header := []string{"response_id", "hcp_id", "hcp_name", "hcp_email", "specialty", "status", "started_at", "completed_at"}
	for _, q := range c.Questions {
		header = append(header, q.ID)
	}
	header = append(header, "nominations")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range responses {
		h := byID[r.HcpID]
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ID.Hex(), r.HcpID.Hex(), h.FullName(), h.Email, h.Specialty,
			string(r.Status), r.StartedAt.UTC().Format(time.RFC3339), completed,
		}
		answers := make(map[string][]string, len(r.Answers))
		for _, a := range r.Answers {
			answers[a.QuestionID] = a.Values
		}
		for _, q := range c.Questions {
			row = append(row, strings.Join(answers[q.ID], "; "))
		}
		row = append(row, strings.Join(r.Nominations, "; "))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type ExportUpload struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

// Upload renders the export and stores it through the configured uploader.
func (s *ExportService) Upload(ctx context.Context, actor Actor, campaignID primitive.ObjectID) (*ExportUpload, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: export storage is not configured", ErrUnavailable)
	}
	c, err := s.campaigns.visible(ctx, actor, campaignID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.write(ctx, c, &buf); err != nil {
		return nil, err
	}
	name := s.FileName(c)
	url, err := s.uploader.Upload(ctx, &buf, name, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	return &ExportUpload{URL: url, FileName: name}, nil
}
