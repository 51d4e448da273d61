package cashsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// MetricsPort receives session lifecycle counters.
type MetricsPort interface {
	SessionOpened()
	SessionClosed(outcome string)
}

// Service implements the cash session lifecycle on top of the ledger store.
type Service struct {
	store   ledger.Store
	locker  shared.Locker
	audit   shared.AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService builds Service. A nil locker disables the distributed open lock.
func NewService(store ledger.Store, locker shared.Locker, audit shared.AuditPort, logger *slog.Logger) *Service {
	if locker == nil {
		locker = shared.NoopLocker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		locker: locker,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics attaches counters.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// Open starts a session for a point of sale. A second OPEN session for the same point
// of sale is a conflict.
func (s *Service) Open(ctx context.Context, in OpenInput) (ledger.CashSession, error) {
	if err := in.Validate(); err != nil {
		return ledger.CashSession{}, err
	}
	release, err := s.locker.Acquire(ctx, shared.CashSessionLockKey(in.PointOfSaleID))
	if err != nil {
		return ledger.CashSession{}, err
	}
	defer release(context.WithoutCancel(ctx))

	session := ledger.CashSession{
		ID:            s.newID(),
		PointOfSaleID: in.PointOfSaleID,
		Status:        ledger.SessionOpen,
		OpenedByID:    in.OpenedByID,
		OpeningAmount: in.OpeningAmount,
		OpenedAt:      s.now(),
		Notes:         strings.TrimSpace(in.Notes),
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, err := tx.FindOpenSession(ctx, in.PointOfSaleID)
		switch {
		case err == nil:
			return fmt.Errorf("point of sale %s already has open cash session %s: %w", in.PointOfSaleID, existing.ID, shared.ErrConflict)
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}
		return tx.InsertSession(ctx, session)
	})
	if err != nil {
		return ledger.CashSession{}, err
	}
	if s.metrics != nil {
		s.metrics.SessionOpened()
	}
	s.recordAudit(ctx, in.OpenedByID, "cash_session.open", session.ID, map[string]any{
		"point_of_sale_id": in.PointOfSaleID.String(),
		"opening_amount":   in.OpeningAmount.String(),
	})
	return session, nil
}

// Summary recomputes the drawer position of a session from its entries.
func (s *Service) Summary(ctx context.Context, sessionID uuid.UUID) (Summary, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	entries, err := sessionEntries(ctx, s.store, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(session, entries), nil
}

func sessionEntries(ctx context.Context, r ledger.Reader, sessionID uuid.UUID) ([]ledger.Entry, error) {
	entries, _, err := r.ListEntries(ctx, ledger.EntryFilter{
		CashSessionID:   ledger.ID(sessionID),
		ExcludeStatuses: []ledger.Status{ledger.StatusDraft},
	})
	return entries, err
}

// Close records the counted amount and freezes the expected balance.
func (s *Service) Close(ctx context.Context, in CloseInput) (View, error) {
	if err := in.Validate(); err != nil {
		return View{}, err
	}
	var out View
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		session, err := tx.LockSession(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if session.Status != ledger.SessionOpen {
			return fmt.Errorf("%w: cash session %s is %s, only OPEN sessions can be closed", shared.ErrInvalidState, session.ID, session.Status)
		}
		entries, err := sessionEntries(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		summary := Summarize(session, entries)
		now := s.now()
		session.Status = ledger.SessionClosed
		session.ClosedByID = ledger.ID(in.ClosedByID)
		session.ClosedAt = &now
		session.ClosingAmount = decimal.NewNullDecimal(in.ClosingAmount)
		session.ExpectedAmount = decimal.NewNullDecimal(summary.ExpectedBalance)
		session.Difference = decimal.NewNullDecimal(in.ClosingAmount.Sub(summary.ExpectedBalance))
		session.Notes = appendNote(session.Notes, "", in.Notes)
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		out = View{CashSession: session, Summary: summary}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if s.metrics != nil {
		s.metrics.SessionClosed(outcome(out.Difference.Decimal))
	}
	s.recordAudit(ctx, in.ClosedByID, "cash_session.close", out.ID, map[string]any{
		"closing_amount":  in.ClosingAmount.String(),
		"expected_amount": out.ExpectedAmount.Decimal.String(),
		"difference":      out.Difference.Decimal.String(),
	})
	return out, nil
}

// Reconcile settles a closed session. The expected amount frozen at close is reused.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (ledger.CashSession, error) {
	if err := in.Validate(); err != nil {
		return ledger.CashSession{}, err
	}
	var out ledger.CashSession
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		session, err := tx.LockSession(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if session.Status != ledger.SessionClosed {
			return fmt.Errorf("%w: cash session %s is %s, only CLOSED sessions can be reconciled", shared.ErrInvalidState, session.ID, session.Status)
		}
		if in.AdjustedAmount.Valid {
			session.ClosingAmount = in.AdjustedAmount
			session.Difference = decimal.NewNullDecimal(in.AdjustedAmount.Decimal.Sub(session.ExpectedAmount.Decimal))
		}
		now := s.now()
		session.Status = ledger.SessionReconciled
		session.ReconciledAt = &now
		session.ReconciledByID = ledger.ID(in.ActorID)
		session.Notes = appendNote(session.Notes, ReconciledMarker, in.Notes)
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return ledger.CashSession{}, err
	}
	meta := map[string]any{"difference": out.Difference.Decimal.String()}
	if in.AdjustedAmount.Valid {
		meta["adjusted_amount"] = in.AdjustedAmount.Decimal.String()
	}
	s.recordAudit(ctx, in.ActorID, "cash_session.reconcile", out.ID, meta)
	return out, nil
}

// Get returns a session with its live summary.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, session)
}

// Current returns the OPEN session of a point of sale.
func (s *Service) Current(ctx context.Context, pointOfSaleID uuid.UUID) (View, error) {
	sessions, _, err := s.store.ListSessions(ctx, ledger.SessionFilter{
		PointOfSaleID: ledger.ID(pointOfSaleID),
		Statuses:      []ledger.SessionStatus{ledger.SessionOpen},
		PerPage:       1,
	})
	if err != nil {
		return View{}, err
	}
	if len(sessions) == 0 {
		return View{}, fmt.Errorf("open cash session for %s: %w", pointOfSaleID, shared.ErrNotFound)
	}
	return s.view(ctx, sessions[0])
}

// List returns a page of sessions with summaries.
func (s *Service) List(ctx context.Context, filter ledger.SessionFilter) ([]View, shared.Pagination, error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	sessions, total, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	views := make([]View, 0, len(sessions))
	for _, session := range sessions {
		v, err := s.view(ctx, session)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		views = append(views, v)
	}
	return views, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Entries returns the posted entries of a session, newest first.
func (s *Service) Entries(ctx context.Context, sessionID uuid.UUID) ([]ledger.Entry, error) {
	return sessionEntries(ctx, s.store, sessionID)
}

func (s *Service) view(ctx context.Context, session ledger.CashSession) (View, error) {
	entries, err := sessionEntries(ctx, s.store, session.ID)
	if err != nil {
		return View{}, err
	}
	return View{CashSession: session, Summary: Summarize(session, entries)}, nil
}

func appendNote(existing, marker, note string) string {
	note = strings.TrimSpace(note)
	if marker != "" {
		note = strings.TrimSpace(marker + " " + note)
	}
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func outcome(diff decimal.Decimal) string {
	switch diff.Sign() {
	case 0:
		return "balanced"
	case 1:
		return "over"
	default:
		return "short"
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, sessionID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "cash_session",
		EntityID: sessionID.String(),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
