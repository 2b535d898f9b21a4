// Package storetest provides in-memory implementations of the store
// repositories for service and handler tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/store"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns a Store backed entirely by memory.
func New() *store.Store {
	return &store.Store{
		Users:        &Users{t: newTable(func(u *models.User) *primitive.ObjectID { return &u.ID })},
		Clients:      &Clients{t: newTable(func(c *models.Client) *primitive.ObjectID { return &c.ID })},
		DiseaseAreas: &DiseaseAreas{t: newTable(func(d *models.DiseaseArea) *primitive.ObjectID { return &d.ID })},
		Hcps:         &Hcps{t: newTable(func(h *models.Hcp) *primitive.ObjectID { return &h.ID })},
		Campaigns:    &Campaigns{t: newTable(func(c *models.Campaign) *primitive.ObjectID { return &c.ID })},
		CampaignHcps: &CampaignHcps{t: newTable(func(c *models.CampaignHcp) *primitive.ObjectID { return &c.ID })},
		Responses:    &Responses{t: newTable(func(r *models.SurveyResponse) *primitive.ObjectID { return &r.ID })},
		Nominations:  &Nominations{t: newTable(func(n *models.NominationMatch) *primitive.ObjectID { return &n.ID })},
		Payments:     &Payments{t: newTable(func(p *models.Payment) *primitive.ObjectID { return &p.ID })},
		Settings:     &Settings{},
	}
}

type table[T any] struct {
	mu   sync.Mutex
	rows []T
	id   func(*T) *primitive.ObjectID
}

func newTable[T any](id func(*T) *primitive.ObjectID) *table[T] {
	return &table[T]{id: id}
}

func (t *table[T]) insert(v *T, conflicts func(existing *T) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if conflicts != nil && conflicts(&t.rows[i]) {
			return store.ErrDuplicate
		}
	}
	if t.id(v).IsZero() {
		*t.id(v) = primitive.NewObjectID()
	}
	t.rows = append(t.rows, *v)
	return nil
}

func (t *table[T]) get(pred func(*T) bool) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if pred(&t.rows[i]) {
			cp := t.rows[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *table[T]) byID(id primitive.ObjectID) (*T, error) {
	return t.get(func(v *T) bool { return *t.id(v) == id })
}

func (t *table[T]) all(pred func(*T) bool) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, 0)
	for i := range t.rows {
		if pred == nil || pred(&t.rows[i]) {
			out = append(out, t.rows[i])
		}
	}
	return out
}

// replace swaps the row with v's id. guard, when set, must hold for the stored row.
func (t *table[T]) replace(v *T, guard func(stored *T) bool, conflicts func(existing *T) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := *t.id(v)
	for i := range t.rows {
		if *t.id(&t.rows[i]) != id && conflicts != nil && conflicts(&t.rows[i]) {
			return store.ErrDuplicate
		}
	}
	for i := range t.rows {
		if *t.id(&t.rows[i]) == id {
			if guard != nil && !guard(&t.rows[i]) {
				return store.ErrStale
			}
			t.rows[i] = *v
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *table[T]) mutate(id primitive.ObjectID, fn func(*T) bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if *t.id(&t.rows[i]) == id {
			return fn(&t.rows[i]), nil
		}
	}
	return false, store.ErrNotFound
}

func (t *table[T]) delete(id primitive.ObjectID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if *t.id(&t.rows[i]) == id {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func page[T any](items []T, p store.Page) ([]T, int64) {
	total := int64(len(items))
	if p.Skip >= total {
		return []T{}, total
	}
	items = items[p.Skip:]
	if p.Limit > 0 && int64(len(items)) > p.Limit {
		items = items[:p.Limit]
	}
	return items, total
}

func contains(haystack, q string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(q))
}

func inScope(id primitive.ObjectID, one *primitive.ObjectID, many []primitive.ObjectID) bool {
	if one != nil && *one != id {
		return false
	}
	if many == nil {
		return true
	}
	for _, m := range many {
		if m == id {
			return true
		}
	}
	return false
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

type Users struct{ t *table[models.User] }

func (r *Users) Create(_ context.Context, u *models.User) error {
	u.Email = normEmail(u.Email)
	return r.t.insert(u, func(e *models.User) bool { return e.Email == u.Email })
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.t.byID(id)
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = normEmail(email)
	return r.t.get(func(u *models.User) bool { return u.Email == email })
}

func (r *Users) List(_ context.Context, f store.UserFilter) ([]models.User, int64, error) {
	items := r.t.all(func(u *models.User) bool {
		if f.Role != "" && u.Role != f.Role {
			return false
		}
		if f.ClientID != nil && (u.ClientID == nil || *u.ClientID != *f.ClientID) {
			return false
		}
		return f.Query == "" || contains(u.Email, f.Query) || contains(u.Name, f.Query)
	})
	out, total := page(items, f.Page)
	return out, total, nil
}

func (r *Users) Update(_ context.Context, u *models.User) error {
	u.Email = normEmail(u.Email)
	return r.t.replace(u, nil, func(e *models.User) bool { return e.Email == u.Email })
}

func (r *Users) TouchLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.t.mutate(id, func(u *models.User) bool { u.LastLoginAt = &at; return true })
	return err
}

type Clients struct{ t *table[models.Client] }

func (r *Clients) Create(_ context.Context, c *models.Client) error { return r.t.insert(c, nil) }

func (r *Clients) FindByID(_ context.Context, id primitive.ObjectID) (*models.Client, error) {
	return r.t.byID(id)
}

func (r *Clients) List(_ context.Context, f store.ClientFilter) ([]models.Client, int64, error) {
	items := r.t.all(func(c *models.Client) bool {
		if f.Active != nil && c.Active != *f.Active {
			return false
		}
		return f.Query == "" || contains(c.Name, f.Query)
	})
	out, total := page(items, f.Page)
	return out, total, nil
}

func (r *Clients) Update(_ context.Context, c *models.Client) error { return r.t.replace(c, nil, nil) }

func (r *Clients) Delete(_ context.Context, id primitive.ObjectID) error { return r.t.delete(id) }

type DiseaseAreas struct{ t *table[models.DiseaseArea] }

func (r *DiseaseAreas) Create(_ context.Context, d *models.DiseaseArea) error {
	return r.t.insert(d, func(e *models.DiseaseArea) bool { return e.Slug == d.Slug })
}

func (r *DiseaseAreas) FindByID(_ context.Context, id primitive.ObjectID) (*models.DiseaseArea, error) {
	return r.t.byID(id)
}

func (r *DiseaseAreas) FindBySlug(_ context.Context, slug string) (*models.DiseaseArea, error) {
	return r.t.get(func(d *models.DiseaseArea) bool { return d.Slug == slug })
}

func (r *DiseaseAreas) List(_ context.Context, f store.DiseaseAreaFilter) ([]models.DiseaseArea, error) {
	items := r.t.all(func(d *models.DiseaseArea) bool { return f.Active == nil || d.Active == *f.Active })
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (r *DiseaseAreas) Update(_ context.Context, d *models.DiseaseArea) error {
	return r.t.replace(d, nil, func(e *models.DiseaseArea) bool { return e.Slug == d.Slug })
}

func (r *DiseaseAreas) Delete(_ context.Context, id primitive.ObjectID) error { return r.t.delete(id) }

type Hcps struct{ t *table[models.Hcp] }

func (r *Hcps) Create(_ context.Context, h *models.Hcp) error {
	h.Email = normEmail(h.Email)
	return r.t.insert(h, func(e *models.Hcp) bool { return e.Email == h.Email })
}

func (r *Hcps) FindByID(_ context.Context, id primitive.ObjectID) (*models.Hcp, error) {
	return r.t.byID(id)
}

func (r *Hcps) FindByEmail(_ context.Context, email string) (*models.Hcp, error) {
	email = normEmail(email)
	return r.t.get(func(h *models.Hcp) bool { return h.Email == email })
}

func (r *Hcps) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Hcp, error) {
	return r.t.all(func(h *models.Hcp) bool { return inScope(h.ID, nil, ids) }), nil
}

func (r *Hcps) List(_ context.Context, f store.HcpFilter) ([]models.Hcp, int64, error) {
	items := r.t.all(func(h *models.Hcp) bool {
		if f.Specialty != "" && h.Specialty != f.Specialty {
			return false
		}
		if f.DiseaseAreaID != nil && !inScope(*f.DiseaseAreaID, nil, append([]primitive.ObjectID{}, h.DiseaseAreaIDs...)) {
			return false
		}
		return f.Query == "" || contains(h.FirstName, f.Query) || contains(h.LastName, f.Query) || contains(h.Email, f.Query)
	})
	out, total := page(items, f.Page)
	return out, total, nil
}

func (r *Hcps) FindByNamePrefixes(_ context.Context, prefixes []string, limit int64) ([]models.Hcp, error) {
	items := r.t.all(func(h *models.Hcp) bool {
		for _, p := range prefixes {
			p = strings.ToLower(p)
			if strings.HasPrefix(strings.ToLower(h.FirstName), p) || strings.HasPrefix(strings.ToLower(h.LastName), p) {
				return true
			}
		}
		return false
	})
	out, _ := page(items, store.Page{Limit: limit})
	return out, nil
}

func (r *Hcps) Update(_ context.Context, h *models.Hcp) error {
	h.Email = normEmail(h.Email)
	return r.t.replace(h, nil, func(e *models.Hcp) bool { return e.Email == h.Email })
}

func (r *Hcps) Delete(_ context.Context, id primitive.ObjectID) error { return r.t.delete(id) }

func (r *Hcps) Count(_ context.Context) (int64, error) { return int64(len(r.t.all(nil))), nil }

func (r *Hcps) CountBySpecialty(_ context.Context, specialty string) (int64, error) {
	return int64(len(r.t.all(func(h *models.Hcp) bool { return h.Specialty == specialty }))), nil
}

func (r *Hcps) UpdateSpecialty(_ context.Context, from, to string) (int64, error) {
	var n int64
	for _, h := range r.t.all(func(h *models.Hcp) bool { return h.Specialty == from }) {
		changed, err := r.t.mutate(h.ID, func(h *models.Hcp) bool {
			if h.Specialty == to {
				return false
			}
			h.Specialty = to
			return true
		})
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

type Campaigns struct{ t *table[models.Campaign] }

func (r *Campaigns) Create(_ context.Context, c *models.Campaign) error {
	return r.t.insert(c, func(e *models.Campaign) bool { return e.Code == c.Code })
}

func (r *Campaigns) FindByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return r.t.byID(id)
}

func (r *Campaigns) List(_ context.Context, f store.CampaignFilter) ([]models.Campaign, int64, error) {
	items := r.t.all(func(c *models.Campaign) bool {
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		if f.ClientID != nil && c.ClientID != *f.ClientID {
			return false
		}
		return f.Query == "" || contains(c.Name, f.Query) || contains(c.Code, f.Query)
	})
	out, total := page(items, f.Page)
	return out, total, nil
}

func (r *Campaigns) Update(_ context.Context, c *models.Campaign) error {
	return r.t.replace(c, nil, nil)
}

func (r *Campaigns) Delete(_ context.Context, id primitive.ObjectID) error { return r.t.delete(id) }

func (r *Campaigns) CountByStatus(_ context.Context, clientID *primitive.ObjectID) (map[models.CampaignStatus]int64, error) {
	out := map[models.CampaignStatus]int64{}
	for _, c := range r.t.all(nil) {
		if clientID == nil || c.ClientID == *clientID {
			out[c.Status]++
		}
	}
	return out, nil
}

func (r *Campaigns) CountByClient(_ context.Context, clientID primitive.ObjectID) (int64, error) {
	return int64(len(r.t.all(func(c *models.Campaign) bool { return c.ClientID == clientID }))), nil
}

func (r *Campaigns) IDsByClient(_ context.Context, clientID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0)
	for _, c := range r.t.all(func(c *models.Campaign) bool { return c.ClientID == clientID }) {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

type CampaignHcps struct{ t *table[models.CampaignHcp] }

func (r *CampaignHcps) Add(_ context.Context, items []models.CampaignHcp) ([]models.CampaignHcp, error) {
	added := make([]models.CampaignHcp, 0, len(items))
	for _, item := range items {
		item := item
		err := r.t.insert(&item, func(e *models.CampaignHcp) bool {
			return (e.CampaignID == item.CampaignID && e.HcpID == item.HcpID) || e.SurveyToken == item.SurveyToken
		})
		if err == store.ErrDuplicate {
			continue
		}
		if err != nil {
			return added, err
		}
		added = append(added, item)
	}
	return added, nil
}

func (r *CampaignHcps) FindByID(_ context.Context, id primitive.ObjectID) (*models.CampaignHcp, error) {
	return r.t.byID(id)
}

func (r *CampaignHcps) FindByToken(_ context.Context, token string) (*models.CampaignHcp, error) {
	return r.t.get(func(c *models.CampaignHcp) bool { return c.SurveyToken == token })
}

func (r *CampaignHcps) Find(_ context.Context, campaignID, hcpID primitive.ObjectID) (*models.CampaignHcp, error) {
	return r.t.get(func(c *models.CampaignHcp) bool { return c.CampaignID == campaignID && c.HcpID == hcpID })
}

func (r *CampaignHcps) ListByCampaign(_ context.Context, campaignID primitive.ObjectID) ([]models.CampaignHcp, error) {
	return r.t.all(func(c *models.CampaignHcp) bool { return c.CampaignID == campaignID }), nil
}

func (r *CampaignHcps) CountByCampaign(_ context.Context, campaignID primitive.ObjectID) (int64, error) {
	return int64(len(r.t.all(func(c *models.CampaignHcp) bool { return c.CampaignID == campaignID }))), nil
}

func (r *CampaignHcps) CountByHcp(_ context.Context, hcpID primitive.ObjectID) (int64, error) {
	return int64(len(r.t.all(func(c *models.CampaignHcp) bool { return c.HcpID == hcpID }))), nil
}

func (r *CampaignHcps) CountHcps(_ context.Context, campaignIDs []primitive.ObjectID) (int64, error) {
	if len(campaignIDs) == 0 {
		return 0, nil
	}
	seen := make(map[primitive.ObjectID]bool)
	for _, ch := range r.t.all(func(ch *models.CampaignHcp) bool { return inScope(ch.CampaignID, nil, campaignIDs) }) {
		seen[ch.HcpID] = true
	}
	return int64(len(seen)), nil
}

func (r *CampaignHcps) Remove(_ context.Context, id primitive.ObjectID) error { return r.t.delete(id) }

func (r *CampaignHcps) MarkEmailSent(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	return r.t.mutate(id, func(c *models.CampaignHcp) bool {
		if c.EmailSentAt != nil {
			return false
		}
		c.EmailSentAt = &at
		return true
	})
}

func (r *CampaignHcps) RecordReminder(_ context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.t.mutate(id, func(c *models.CampaignHcp) bool {
		c.ReminderCount++
		c.LastReminderAt = &at
		return true
	})
	return err
}

type Responses struct{ t *table[models.SurveyResponse] }

func (r *Responses) Create(_ context.Context, resp *models.SurveyResponse) error {
	return r.t.insert(resp, func(e *models.SurveyResponse) bool { return e.CampaignHcpID == resp.CampaignHcpID })
}

func (r *Responses) FindByID(_ context.Context, id primitive.ObjectID) (*models.SurveyResponse, error) {
	return r.t.byID(id)
}

func (r *Responses) FindByCampaignHcp(_ context.Context, campaignHcpID primitive.ObjectID) (*models.SurveyResponse, error) {
	return r.t.get(func(e *models.SurveyResponse) bool { return e.CampaignHcpID == campaignHcpID })
}

func (r *Responses) match(f store.ResponseFilter) func(*models.SurveyResponse) bool {
	return func(e *models.SurveyResponse) bool {
		if !inScope(e.CampaignID, f.CampaignID, f.CampaignIDs) {
			return false
		}
		if f.HcpID != nil && e.HcpID != *f.HcpID {
			return false
		}
		return f.Status == "" || e.Status == f.Status
	}
}

func (r *Responses) List(_ context.Context, f store.ResponseFilter) ([]models.SurveyResponse, int64, error) {
	out, total := page(r.t.all(r.match(f)), f.Page)
	return out, total, nil
}

func (r *Responses) Update(_ context.Context, resp *models.SurveyResponse, from models.ResponseStatus) error {
	return r.t.replace(resp, func(stored *models.SurveyResponse) bool { return stored.Status == from }, nil)
}

func (r *Responses) CountByStatus(_ context.Context, f store.ResponseFilter) (map[models.ResponseStatus]int64, error) {
	out := map[models.ResponseStatus]int64{}
	for _, e := range r.t.all(r.match(f)) {
		out[e.Status]++
	}
	return out, nil
}

type Nominations struct{ t *table[models.NominationMatch] }

func (r *Nominations) CreateMany(_ context.Context, items []models.NominationMatch) error {
	for i := range items {
		if err := r.t.insert(&items[i], nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *Nominations) FindByID(_ context.Context, id primitive.ObjectID) (*models.NominationMatch, error) {
	return r.t.byID(id)
}

func (r *Nominations) List(_ context.Context, f store.NominationFilter) ([]models.NominationMatch, int64, error) {
	items := r.t.all(func(n *models.NominationMatch) bool {
		return inScope(n.CampaignID, f.CampaignID, f.CampaignIDs) && (f.Status == "" || n.Status == f.Status)
	})
	out, total := page(items, f.Page)
	return out, total, nil
}

func (r *Nominations) Update(_ context.Context, n *models.NominationMatch) error {
	return r.t.replace(n, nil, nil)
}

func (r *Nominations) TopNominees(_ context.Context, campaignID primitive.ObjectID, limit int64) ([]models.NomineeCount, error) {
	counts := map[primitive.ObjectID]int64{}
	for _, n := range r.t.all(func(n *models.NominationMatch) bool {
		return n.CampaignID == campaignID && n.Status == models.NominationConfirmed && n.MatchedHcpID != nil
	}) {
		counts[*n.MatchedHcpID]++
	}
	out := make([]models.NomineeCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, models.NomineeCount{HcpID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].HcpID.Hex() < out[j].HcpID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Payments struct{ t *table[models.Payment] }

func (r *Payments) Create(_ context.Context, p *models.Payment) error {
	return r.t.insert(p, func(e *models.Payment) bool { return e.ResponseID == p.ResponseID })
}

func (r *Payments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return r.t.byID(id)
}

func (r *Payments) match(f store.PaymentFilter) func(*models.Payment) bool {
	return func(p *models.Payment) bool {
		if !inScope(p.CampaignID, f.CampaignID, f.CampaignIDs) {
			return false
		}
		if f.HcpID != nil && p.HcpID != *f.HcpID {
			return false
		}
		return f.Status == "" || p.Status == f.Status
	}
}

func (r *Payments) List(_ context.Context, f store.PaymentFilter) ([]models.Payment, int64, error) {
	out, total := page(r.t.all(r.match(f)), f.Page)
	return out, total, nil
}

func (r *Payments) Update(_ context.Context, p *models.Payment, from models.PaymentStatus) error {
	return r.t.replace(p, func(stored *models.Payment) bool { return stored.Status == from }, nil)
}

func (r *Payments) Totals(_ context.Context, f store.PaymentFilter) ([]models.PaymentTotal, error) {
	type key struct {
		status   models.PaymentStatus
		currency string
	}
	acc := map[key]*models.PaymentTotal{}
	for _, p := range r.t.all(r.match(f)) {
		k := key{p.Status, p.Currency}
		if acc[k] == nil {
			acc[k] = &models.PaymentTotal{Status: p.Status, Currency: p.Currency, Amount: models.MoneyFrom(decimal.Zero)}
		}
		acc[k].Count++
		acc[k].Amount = models.MoneyFrom(acc[k].Amount.Add(p.Amount.Decimal))
	}
	out := make([]models.PaymentTotal, 0, len(acc))
	for _, t := range acc {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

type Settings struct {
	mu  sync.Mutex
	doc *models.Settings
}

func (r *Settings) Get(_ context.Context) (*models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil, store.ErrNotFound
	}
	cp := *r.doc
	return &cp, nil
}

func (r *Settings) Save(_ context.Context, s *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = models.SettingsID
	cp := *s
	r.doc = &cp
	return nil
}
