package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errUnreachable = &apierror.NetworkError{Op: "test", Err: errors.New("connection refused")}

// ── In-memory SessionStore ────────────────────────────────────────────────────

type stubSessionStore struct {
	mu         sync.Mutex
	open       map[int]*model.Session
	lastClosed map[int]*model.SessionSummary
	closed     []*model.Session
	seq        int

	getOpenErr    error
	lastClosedErr error
	createErr     error
	closeErr      error
	forceCloseErr error

	getOpenCalls int
	createCalls  int
	lastInput    repository.CloseInput
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{
		open:       make(map[int]*model.Session),
		lastClosed: make(map[int]*model.SessionSummary),
	}
}

// seedOpen puts an open session opened at openedAt into the store.
func (s *stubSessionStore) seedOpen(locationID int, openedAt time.Time) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sess := &model.Session{
		ID:             uuid.New(),
		SessionNumber:  "S-" + decimal.NewFromInt(int64(s.seq)).String(),
		LocationID:     locationID,
		Status:         model.SessionOpen,
		OpeningBalance: decimal.NewFromInt(5000),
		OpenedAt:       openedAt,
	}
	s.open[locationID] = sess
	return sess
}

func (s *stubSessionStore) GetOpenSession(_ context.Context, locationID int) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOpenCalls++
	if s.getOpenErr != nil {
		return nil, s.getOpenErr
	}
	if sess, ok := s.open[locationID]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *stubSessionStore) GetLastClosedSession(_ context.Context, locationID int) (*model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastClosedErr != nil {
		return nil, s.lastClosedErr
	}
	return s.lastClosed[locationID], nil
}

func (s *stubSessionStore) CreateSession(_ context.Context, locationID int, openingBalance decimal.Decimal, notes *string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.seq++
	sess := &model.Session{
		ID:             uuid.New(),
		SessionNumber:  "S-" + decimal.NewFromInt(int64(s.seq)).String(),
		LocationID:     locationID,
		Status:         model.SessionOpen,
		OpeningBalance: openingBalance,
		Notes:          notes,
		OpenedAt:       time.Now(),
	}
	s.open[locationID] = sess
	cp := *sess
	return &cp, nil
}

func (s *stubSessionStore) CloseSession(_ context.Context, sessionID uuid.UUID, in repository.CloseInput) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInput = in
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	return s.closeLocked(sessionID, in.ActualBalance, in.Notes, false, &in)
}

func (s *stubSessionStore) ForceCloseSession(_ context.Context, sessionID uuid.UUID, actualBalance decimal.Decimal, notes string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceCloseErr != nil {
		return nil, s.forceCloseErr
	}
	return s.closeLocked(sessionID, actualBalance, &notes, true, nil)
}

func (s *stubSessionStore) closeLocked(id uuid.UUID, actual decimal.Decimal, notes *string, forced bool, in *repository.CloseInput) (*model.Session, error) {
	for loc, sess := range s.open {
		if sess.ID != id {
			continue
		}
		delete(s.open, loc)
		now := time.Now()
		expected := sess.OpeningBalance
		if in != nil {
			expected = expected.Add(in.CommercialIncome).Sub(in.Payouts)
		}
		variance := actual.Sub(expected)
		sess.Status = model.SessionClosed
		sess.ActualBalance = &actual
		sess.ExpectedBalance = &expected
		sess.Variance = &variance
		sess.ClosingNotes = notes
		sess.ForceClosed = forced
		sess.ClosedAt = &now
		s.closed = append(s.closed, sess)
		s.lastClosed[loc] = &model.SessionSummary{ID: sess.ID, SessionNumber: sess.SessionNumber, LocationID: loc, ClosedAt: &now}
		cp := *sess
		return &cp, nil
	}
	return nil, &apierror.ConflictError{Reason: apierror.ReasonAlreadyClosed}
}

// ── In-memory LastClosedCache ─────────────────────────────────────────────────

type stubCache struct {
	mu      sync.Mutex
	entries map[int]*model.SessionSummary
	getErr  error
}

func newStubCache() *stubCache { return &stubCache{entries: make(map[int]*model.SessionSummary)} }

func (c *stubCache) GetLastClosed(_ context.Context, locationID int) (*model.SessionSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[locationID], nil
}

func (c *stubCache) SetLastClosed(_ context.Context, s *model.SessionSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.LocationID] = s
	return nil
}

// ── Report / order / payment stubs ────────────────────────────────────────────

type stubReportStore struct {
	summary *model.ReportSummary
	err     error
	calls   int
}

func (r *stubReportStore) GetSessionReport(_ context.Context, _ uuid.UUID) (*model.ReportSummary, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.summary, nil
}

type stubOrderStore struct {
	drafts []repository.OrderDraft
	err    error
}

func (o *stubOrderStore) SaveOrder(_ context.Context, draft repository.OrderDraft) (*model.OrderRef, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.drafts = append(o.drafts, draft)
	id := uuid.New()
	if draft.ID != nil {
		id = *draft.ID
	}
	return &model.OrderRef{ID: id, Code: "ORD-1"}, nil
}

type stubGateway struct {
	calls     int
	orderID   uuid.UUID
	sessionID uuid.UUID
	payments  []model.PaymentRecord
	err       error
}

func (g *stubGateway) SubmitPayment(_ context.Context, orderID, sessionID uuid.UUID, payments []model.PaymentRecord, _ bool) (*model.Receipt, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	g.orderID, g.sessionID, g.payments = orderID, sessionID, payments
	return &model.Receipt{OrderID: orderID, SessionID: sessionID, Payments: payments}, nil
}

// ── In-memory CategoryStore ───────────────────────────────────────────────────

type stubCategoryStore struct {
	mu         sync.Mutex
	categories []model.Category
	searchErr  error
	searches   int
}

func (c *stubCategoryStore) SearchCategories(_ context.Context, query string) ([]model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	out := make([]model.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if query == "" || strings.Contains(strings.ToLower(cat.Name), strings.ToLower(query)) {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (c *stubCategoryStore) CreateCategory(_ context.Context, name string, description *string) (*model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat := model.Category{ID: uuid.New(), Name: name, Description: description}
	c.categories = append(c.categories, cat)
	return &cat, nil
}

func (c *stubCategoryStore) UpdateCategory(_ context.Context, id uuid.UUID, name string, description *string) (*model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.categories {
		if c.categories[i].ID == id {
			c.categories[i].Name = name
			c.categories[i].Description = description
			cp := c.categories[i]
			return &cp, nil
		}
	}
	return nil, &apierror.NotFoundError{Resource: "category", ID: id.String()}
}
