package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"github.com/sahilm/fuzzy"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var honorifics = map[string]bool{
	"dr": true, "doctor": true, "prof": true, "professor": true,
	"mr": true, "mrs": true, "ms": true, "miss": true, "sir": true, "dame": true,
	"md": true, "phd": true, "do": true, "mbbs": true, "frcp": true, "facp": true,
	"jr": true, "sr": true,
}

// NormalizeName lower-cases a person's name, strips punctuation and honorifics
// and collapses whitespace.
func NormalizeName(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '’':
			return -1
		}
		return ' '
	}, raw)
	words := make([]string, 0, 4)
	for _, w := range strings.Fields(cleaned) {
		if !honorifics[w] {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

type MatchResult struct {
	HcpID  *primitive.ObjectID
	Score  float64
	Status models.NominationStatus
}

// Matcher resolves free-text nominee names to HCP records.
type Matcher struct {
	// MinScore is the lowest fuzzy score still proposed for review.
	MinScore float64
}

func NewMatcher() *Matcher { return &Matcher{MinScore: 0.5} }

// Match returns confirmed for a single exact normalised match, pending for a
// fuzzy or ambiguous one and unmatched otherwise.
func (m *Matcher) Match(raw string, candidates []models.Hcp) MatchResult {
	name := NormalizeName(raw)
	if name == "" || len(candidates) == 0 {
		return MatchResult{Status: models.NominationUnmatched}
	}

	names := make([]string, 0, 2*len(candidates))
	owner := make([]int, 0, 2*len(candidates))
	var exact []int
	for i, h := range candidates {
		forward := NormalizeName(h.FirstName + " " + h.LastName)
		reverse := NormalizeName(h.LastName + " " + h.FirstName)
		if name == forward || name == reverse {
			exact = append(exact, i)
		}
		names = append(names, forward, reverse)
		owner = append(owner, i, i)
	}

	switch len(exact) {
	case 0:
	case 1:
		id := candidates[exact[0]].ID
		return MatchResult{HcpID: &id, Score: 1, Status: models.NominationConfirmed}
	default:
		// namesakes need a human decision
		id := candidates[exact[0]].ID
		return MatchResult{HcpID: &id, Score: 0.99, Status: models.NominationPending}
	}

	best, bestScore := -1, 0.0
	for _, match := range fuzzy.Find(name, names) {
		score := similarity(name, match)
		if score > bestScore {
			best, bestScore = owner[match.Index], score
		}
	}
	if best < 0 || bestScore < m.MinScore {
		return MatchResult{Status: models.NominationUnmatched}
	}
	id := candidates[best].ID
	return MatchResult{HcpID: &id, Score: bestScore, Status: models.NominationPending}
}

// similarity is the share of the longer string covered by the fuzzy match, kept below 1.
func similarity(pattern string, m fuzzy.Match) float64 {
	longest := utf8.RuneCountInString(m.Str)
	if n := utf8.RuneCountInString(pattern); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	score := float64(len(m.MatchedIndexes)) / float64(longest)
	if score > 0.99 {
		score = 0.99
	}
	return score
}

type NominationService struct {
	store   *store.Store
	matcher *Matcher
	now     func() time.Time
}

const (
	// candidateLimit caps the HCPs loaded to rank one nominee name.
	candidateLimit = 200
	namePrefixLen  = 3
)

// namePrefixes returns the leading runes of each word of the normalised name.
// Single-letter words are initials and too unselective to query on.
func namePrefixes(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(NormalizeName(raw)) {
		runes := []rune(w)
		if len(runes) < 2 {
			continue
		}
		if len(runes) > namePrefixLen {
			runes = runes[:namePrefixLen]
		}
		p := string(runes)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// record matches each nomination against the HCPs sharing a name prefix with
// it, excluding the nominator.
func (s *NominationService) record(ctx context.Context, r *models.SurveyResponse) error {
	now := s.now().UTC()
	items := make([]models.NominationMatch, 0, len(r.Nominations))
	for _, raw := range r.Nominations {
		found, err := s.store.Hcps.FindByNamePrefixes(ctx, namePrefixes(raw), candidateLimit)
		if err != nil {
			return fmt.Errorf("load nomination candidates: %w", err)
		}
		candidates := found[:0]
		for _, h := range found {
			if h.ID != r.HcpID {
				candidates = append(candidates, h)
			}
		}

		m := s.matcher.Match(raw, candidates)
		items = append(items, models.NominationMatch{
			CampaignID:     r.CampaignID,
			ResponseID:     r.ID,
			NominatorHcpID: r.HcpID,
			RawName:        raw,
			MatchedHcpID:   m.HcpID,
			Score:          m.Score,
			Status:         m.Status,
			CreatedAt:      now,
		})
	}
	return s.store.Nominations.CreateMany(ctx, items)
}

func (s *NominationService) List(ctx context.Context, f store.NominationFilter) ([]models.NominationMatch, int64, error) {
	return s.store.Nominations.List(ctx, f)
}

type ReviewInput struct {
	Decision string `json:"decision" binding:"required,oneof=confirm reject"`
	HcpID    string `json:"hcpId" binding:"omitempty,objectid"`
}

// Review confirms or rejects a pending or unmatched nomination. Confirming may
// point it at a different HCP.
func (s *NominationService) Review(ctx context.Context, actor Actor, id primitive.ObjectID, in ReviewInput) (*models.NominationMatch, error) {
	n, err := s.store.Nominations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.Status.Reviewable() {
		return nil, fmt.Errorf("%w: nomination is already %s", ErrInvalidTransition, n.Status)
	}

	switch in.Decision {
	case "confirm":
		if in.HcpID != "" {
			hid, err := ParseID("hcpId", in.HcpID)
			if err != nil {
				return nil, err
			}
			if _, err := s.store.Hcps.FindByID(ctx, hid); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, invalid("hcpId", "HCP does not exist")
				}
				return nil, err
			}
			n.MatchedHcpID = &hid
		}
		if n.MatchedHcpID == nil {
			return nil, invalid("hcpId", "is required to confirm an unmatched nomination")
		}
		if *n.MatchedHcpID == n.NominatorHcpID {
			return nil, invalid("hcpId", "an HCP cannot nominate themselves")
		}
		n.Status = models.NominationConfirmed
		n.Score = 1
	case "reject":
		n.Status = models.NominationRejected
	default:
		return nil, invalid("decision", "must be confirm or reject")
	}

	now := s.now().UTC()
	n.ReviewedBy = &actor.UserID
	n.ReviewedAt = &now
	if err := s.store.Nominations.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
