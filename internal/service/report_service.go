package service

import (
	"context"
	"fmt"
	"time"

	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/reconciliation"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ReportService interface {
	// XReport is a read-only snapshot of the active session.
	XReport(ctx context.Context) (*reconciliation.XReport, error)
	// Preview computes the variance a close would produce without closing.
	Preview(ctx context.Context, req dto.CloseSessionRequest) (*reconciliation.Result, error)
	// ZReport closes the active session and archives the store's closed record.
	ZReport(ctx context.Context, req dto.CloseSessionRequest) (*model.ZReport, error)
	StoredZReport(ctx context.Context, sessionID uuid.UUID) (*model.ZReport, error)
	History(ctx context.Context, limit int) ([]model.ZReport, error)
}

type reportService struct {
	sessions SessionManager
	reports  repository.ReportStore
	archive  repository.ZReportRepository
	now      func() time.Time
}

func NewReportService(sessions SessionManager, reports repository.ReportStore, archive repository.ZReportRepository) ReportService {
	return &reportService{sessions: sessions, reports: reports, archive: archive, now: time.Now}
}

// ── X report ──────────────────────────────────────────────────────────────────

func (s *reportService) XReport(ctx context.Context) (*reconciliation.XReport, error) {
	session, err := s.activeSession()
	if err != nil {
		return nil, err
	}
	summary, err := s.reports.GetSessionReport(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	x := reconciliation.BuildXReport(session, summary, s.now())
	return &x, nil
}

// ── Preview ───────────────────────────────────────────────────────────────────

func (s *reportService) Preview(ctx context.Context, req dto.CloseSessionRequest) (*reconciliation.Result, error) {
	session, err := s.activeSession()
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	summary, err := s.reports.GetSessionReport(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	res := reconciliation.Compute(session.OpeningBalance, summary.CashSales, inputsOf(req))
	return &res, nil
}

// ── Z report ──────────────────────────────────────────────────────────────────

// ZReport returns the archived record even when archiving fails; the close
// itself is final on the store side.
func (s *reportService) ZReport(ctx context.Context, req dto.CloseSessionRequest) (*model.ZReport, error) {
	session, err := s.activeSession()
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	summary, err := s.reports.GetSessionReport(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	closed, err := s.sessions.CloseSession(ctx, req)
	if err != nil {
		return nil, err
	}

	in := inputsOf(req)
	local := reconciliation.Compute(closed.OpeningBalance, summary.CashSales, in)
	z := reconciliation.ToZReport(closed, summary.CashSales, in, local)
	if z.ClosedAt.IsZero() {
		z.ClosedAt = s.now().UTC()
	}

	if err := s.archive.Save(ctx, &z); err != nil {
		log.Error().Err(err).Str("session_id", closed.ID.String()).Msg("z-report archive failed")
		return &z, fmt.Errorf("archive z-report: %w", err)
	}

	log.Info().
		Str("session_id", closed.ID.String()).
		Str("variance", z.Variance.StringFixed(2)).
		Str("classification", z.Classification).
		Msg("z-report archived")
	return &z, nil
}

func (s *reportService) StoredZReport(ctx context.Context, sessionID uuid.UUID) (*model.ZReport, error) {
	return s.archive.FindBySessionID(ctx, sessionID)
}

func (s *reportService) History(ctx context.Context, limit int) ([]model.ZReport, error) {
	return s.archive.ListByLocation(ctx, s.sessions.LocationID(), limit)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *reportService) activeSession() (*model.Session, error) {
	session := s.sessions.Current()
	if s.sessions.State() != StateActive || session == nil {
		return nil, wrongState(StateActive)
	}
	return session, nil
}

// inputsOf assumes req already passed validation.
func inputsOf(req dto.CloseSessionRequest) reconciliation.Inputs {
	return reconciliation.Inputs{
		ActualBalance:    optionalMoney(req.ActualBalance),
		CommercialIncome: optionalMoney(req.CommercialIncome),
		Payouts:          optionalMoney(req.Payouts),
	}
}
