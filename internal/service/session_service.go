package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionState: "no_session" | "active" | "stale" | "closed"
type SessionState string

const (
	StateNoSession SessionState = "no_session"
	StateActive    SessionState = "active"
	StateStale     SessionState = "stale"
	StateClosed    SessionState = "closed"
)

// LastClosedCache keeps the last closed session summary for offline display.
type LastClosedCache interface {
	GetLastClosed(ctx context.Context, locationID int) (*model.SessionSummary, error)
	SetLastClosed(ctx context.Context, s *model.SessionSummary) error
}

// SessionManager gates every transaction on the cash drawer session of one
// location. The store is authoritative: conflicts always trigger a reload and
// any other store failure hides the usable session id until the next Load.
type SessionManager interface {
	Load(ctx context.Context, locationID int) (SessionState, error)
	Open(ctx context.Context, req dto.OpenSessionRequest) (*model.Session, error)
	ForceClose(ctx context.Context, req dto.ForceCloseRequest) (*model.Session, error)
	CloseSession(ctx context.Context, req dto.CloseSessionRequest) (*model.Session, error)

	State() SessionState
	Current() *model.Session
	UsableSessionID() (uuid.UUID, bool)
	LastClosed() *model.SessionSummary
	LocationID() int
}

type SessionOptions struct {
	Cache      LastClosedCache // optional
	Location   *time.Location  // business-day time zone, default time.Local
	CutoffHour int             // hour at which the business day rolls over, 0..23
	Now        func() time.Time
}

type sessionManager struct {
	store      repository.SessionStore
	cache      LastClosedCache
	loc        *time.Location
	cutoffHour int
	now        func() time.Time

	mu         sync.RWMutex
	locationID int
	state      SessionState
	current    *model.Session
	lastClosed *model.SessionSummary
	unreliable bool
}

func NewSessionManager(store repository.SessionStore, locationID int, opts SessionOptions) SessionManager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CutoffHour < 0 || opts.CutoffHour > 23 {
		opts.CutoffHour = 0
	}
	return &sessionManager{
		store:      store,
		cache:      opts.Cache,
		loc:        opts.Location,
		cutoffHour: opts.CutoffHour,
		now:        opts.Now,
		locationID: locationID,
		state:      StateNoSession,
	}
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (m *sessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *sessionManager) Current() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// UsableSessionID is the only id new transactions may be recorded against.
func (m *sessionManager) UsableSessionID() (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateActive || m.unreliable || m.current == nil {
		return uuid.Nil, false
	}
	return m.current.ID, true
}

func (m *sessionManager) LastClosed() *model.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastClosed
}

func (m *sessionManager) LocationID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locationID
}

// ── Load ──────────────────────────────────────────────────────────────────────

func (m *sessionManager) Load(ctx context.Context, locationID int) (SessionState, error) {
	if locationID <= 0 {
		return m.State(), apierror.Invalid("LocationID", "required")
	}

	s, err := m.store.GetOpenSession(ctx, locationID)
	if err != nil {
		m.markUnreliable(err, "load session")
		return m.State(), err
	}

	m.mu.Lock()
	m.locationID = locationID
	m.unreliable = false
	m.current = s
	switch {
	case s == nil:
		m.state = StateNoSession
	case m.isStale(s.OpenedAt):
		m.state = StateStale
	default:
		m.state = StateActive
	}
	state := m.state
	m.mu.Unlock()

	ev := log.Info().Int("location_id", locationID).Str("state", string(state))
	if s != nil {
		ev = ev.Str("session_id", s.ID.String())
	}
	ev.Msg("session loaded")

	if state == StateNoSession {
		m.loadLastClosed(ctx, locationID)
	}
	return state, nil
}

// loadLastClosed is best-effort: the store first, the cache as a fallback.
func (m *sessionManager) loadLastClosed(ctx context.Context, locationID int) {
	summary, err := m.store.GetLastClosedSession(ctx, locationID)
	if err != nil {
		log.Warn().Err(err).Int("location_id", locationID).Msg("last closed session unavailable")
		if m.cache == nil {
			return
		}
		cached, cerr := m.cache.GetLastClosed(ctx, locationID)
		if cerr != nil {
			log.Warn().Err(cerr).Int("location_id", locationID).Msg("last closed session cache read failed")
			return
		}
		summary = cached
	} else {
		m.cacheLastClosed(ctx, summary)
	}
	if summary == nil {
		return
	}

	m.mu.Lock()
	m.lastClosed = summary
	m.mu.Unlock()
}

func (m *sessionManager) cacheLastClosed(ctx context.Context, summary *model.SessionSummary) {
	if m.cache == nil || summary == nil {
		return
	}
	if err := m.cache.SetLastClosed(ctx, summary); err != nil {
		log.Warn().Err(err).Int("location_id", summary.LocationID).Msg("last closed session cache write failed")
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (m *sessionManager) Open(ctx context.Context, req dto.OpenSessionRequest) (*model.Session, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	balance, _ := parseMoney(req.OpeningBalance)

	// Guard: one open session per location, as reported by the store.
	existing, err := m.store.GetOpenSession(ctx, req.LocationID)
	if err != nil {
		m.markUnreliable(err, "open session")
		return nil, err
	}
	if existing != nil {
		m.reload(ctx, req.LocationID)
		return nil, &apierror.ConflictError{
			Reason: apierror.ReasonSessionOpen,
			Detail: "session " + existing.SessionNumber + " is already open",
		}
	}

	s, err := m.store.CreateSession(ctx, req.LocationID, balance, req.Notes)
	if err != nil {
		m.handleStoreError(ctx, req.LocationID, err, "open session")
		return nil, err
	}

	m.mu.Lock()
	m.locationID = req.LocationID
	m.current = s
	m.state = StateActive
	m.unreliable = false
	m.mu.Unlock()

	log.Info().
		Str("session_id", s.ID.String()).
		Int("location_id", req.LocationID).
		Str("opening_balance", balance.StringFixed(2)).
		Msg("session opened")
	return s, nil
}

// ── ForceClose ────────────────────────────────────────────────────────────────

func (m *sessionManager) ForceClose(ctx context.Context, req dto.ForceCloseRequest) (*model.Session, error) {
	m.mu.RLock()
	state, current, locationID := m.state, m.current, m.locationID
	m.mu.RUnlock()

	if state != StateStale || current == nil {
		return nil, wrongState(StateStale)
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	balance, _ := parseMoney(req.ActualBalance)

	closed, err := m.store.ForceCloseSession(ctx, current.ID, balance, strings.TrimSpace(req.ClosingNotes))
	if err != nil {
		m.handleStoreError(ctx, locationID, err, "force close session")
		return nil, err
	}

	log.Info().
		Str("session_id", current.ID.String()).
		Int("location_id", locationID).
		Msg("stale session force-closed")

	// Another session may already exist; the store decides what comes next.
	m.reload(ctx, locationID)
	return closed, nil
}

// ── CloseSession ──────────────────────────────────────────────────────────────

func (m *sessionManager) CloseSession(ctx context.Context, req dto.CloseSessionRequest) (*model.Session, error) {
	m.mu.RLock()
	state, current, locationID := m.state, m.current, m.locationID
	m.mu.RUnlock()

	if state != StateActive || current == nil {
		return nil, wrongState(StateActive)
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	actual, _ := parseMoney(req.ActualBalance)

	closed, err := m.store.CloseSession(ctx, current.ID, repository.CloseInput{
		ActualBalance:    actual,
		CommercialIncome: optionalMoney(req.CommercialIncome),
		Payouts:          optionalMoney(req.Payouts),
		Notes:            optionalString(req.ClosingNotes),
	})
	if err != nil {
		m.handleStoreError(ctx, locationID, err, "close session")
		return nil, err
	}

	summary := summaryOf(closed)
	m.mu.Lock()
	m.current = closed
	m.state = StateClosed
	m.lastClosed = summary
	m.mu.Unlock()
	m.cacheLastClosed(ctx, summary)

	log.Info().
		Str("session_id", closed.ID.String()).
		Int("location_id", locationID).
		Msg("session closed")
	return closed, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// handleStoreError applies the failure policy: a conflict forces a reload of
// canonical state, anything else marks the cached state unreliable.
func (m *sessionManager) handleStoreError(ctx context.Context, locationID int, err error, op string) {
	var ce *apierror.ConflictError
	if errors.As(err, &ce) {
		log.Warn().Err(err).Str("op", op).Int("location_id", locationID).Msg("session conflict, reloading")
		m.reload(ctx, locationID)
		return
	}
	m.markUnreliable(err, op)
}

func (m *sessionManager) reload(ctx context.Context, locationID int) {
	if _, err := m.Load(ctx, locationID); err != nil {
		log.Warn().Err(err).Int("location_id", locationID).Msg("session reload failed")
	}
}

func (m *sessionManager) markUnreliable(err error, op string) {
	m.mu.Lock()
	m.unreliable = true
	locationID := m.locationID
	m.mu.Unlock()
	log.Error().Err(err).Str("op", op).Int("location_id", locationID).Msg("session store failure")
}

// isStale reports whether openedAt falls on an earlier business day than now.
func (m *sessionManager) isStale(openedAt time.Time) bool {
	return BusinessDay(openedAt, m.loc, m.cutoffHour).Before(BusinessDay(m.now(), m.loc, m.cutoffHour))
}

// BusinessDay returns midnight UTC of the business date t belongs to: the
// calendar date in loc after subtracting cutoffHour hours.
func BusinessDay(t time.Time, loc *time.Location, cutoffHour int) time.Time {
	shifted := t.In(loc).Add(-time.Duration(cutoffHour) * time.Hour)
	y, mo, d := shifted.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func wrongState(want SessionState) error {
	return &apierror.ValidationError{
		Detail: "session must be " + string(want),
		Fields: map[string]string{"session": string(want)},
	}
}

func summaryOf(s *model.Session) *model.SessionSummary {
	return &model.SessionSummary{
		ID:              s.ID,
		SessionNumber:   s.SessionNumber,
		LocationID:      s.LocationID,
		ActualBalance:   s.ActualBalance,
		ExpectedBalance: s.ExpectedBalance,
		Variance:        s.Variance,
		OpenedAt:        s.OpenedAt,
		ClosedAt:        s.ClosedAt,
	}
}
