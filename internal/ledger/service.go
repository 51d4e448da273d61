package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/numbering"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// MetricsPort receives ledger counters.
type MetricsPort interface {
	EntryConfirmed(entryType string)
	EntryReversed(entryType string)
	NumberingRetried()
}

// Service owns creation, confirmation and reversal of ledger entries.
type Service struct {
	store   Store
	numbers *numbering.Assigner
	audit   shared.AuditPort
	metrics MetricsPort
	stock   StockPoster
	logger  *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService builds Service.
func NewService(store Store, numbers *numbering.Assigner, audit shared.AuditPort, logger *slog.Logger) *Service {
	if numbers == nil {
		numbers = numbering.NewAssigner("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		numbers: numbers,
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.New,
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

// WithStock posts inventory movements whenever an entry with lines is confirmed.
func (s *Service) WithStock(p StockPoster) *Service {
	s.stock = p
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Store exposes the persistence collaborator to sibling workflows.
func (s *Service) Store() Store {
	return s.store
}

// Atomic runs fn in one unit of work. A collision on the document number discards the
// attempt and runs fn once more so the number is recomputed.
func (s *Service) Atomic(ctx context.Context, fn func(context.Context, Tx) error) error {
	return numbering.RetryOnConflict(ctx, func(ctx context.Context) error {
		return s.store.WithTx(ctx, fn)
	}, func(err error) bool {
		return errors.Is(err, ErrDuplicateDocumentNumber)
	}, func(err error) {
		s.logger.Warn("document number collision, retrying", slog.Any("error", err))
		if s.metrics != nil {
			s.metrics.NumberingRetried()
		}
	})
}

// Create validates and persists a new entry in DRAFT, or CONFIRMED when requested.
func (s *Service) Create(ctx context.Context, in CreateInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	var created Entry
	err := s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		created, err = s.CreateInTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	action := "ledger.create"
	if created.Status == StatusConfirmed {
		action = "ledger.create_confirmed"
		s.countConfirmed(created.EntryType)
	}
	s.recordAudit(ctx, in.UserID.UUID, action, created, map[string]any{
		"entry_type": created.EntryType,
		"total":      created.Total.String(),
	})
	return created, nil
}

// CreateInTx persists a validated entry inside tx. Relational rules are checked here
// because they depend on rows the transaction can lock.
func (s *Service) CreateInTx(ctx context.Context, tx Tx, in CreateInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	now := s.now()
	payload := in.Payload
	if payload == nil {
		payload = NewPayload(in.EntryType)
	}
	entry := Entry{
		ID:                s.newID(),
		EntryType:         in.EntryType,
		Status:            StatusDraft,
		PaymentMethod:     in.PaymentMethod,
		Subtotal:          in.Subtotal,
		DiscountAmount:    in.DiscountAmount,
		TaxAmount:         in.TaxAmount,
		Total:             in.Total,
		AmountPaid:        in.AmountPaid,
		BranchID:          in.BranchID,
		PointOfSaleID:     in.PointOfSaleID,
		CashSessionID:     in.CashSessionID,
		StorageID:         in.StorageID,
		TargetStorageID:   in.TargetStorageID,
		CustomerID:        in.CustomerID,
		SupplierID:        in.SupplierID,
		UserID:            in.UserID,
		CostCenterID:      in.CostCenterID,
		ExpenseCategoryID: in.ExpenseCategoryID,
		RelatedEntryID:    in.RelatedEntryID,
		Notes:             strings.TrimSpace(in.Notes),
		Metadata:          Metadata{Payload: payload, extra: in.extra},
		Lines:             append([]Line(nil), in.Lines...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.checkSession(ctx, tx, entry); err != nil {
		return Entry{}, err
	}
	if entry.RelatedEntryID.Valid {
		if err := s.checkRelated(ctx, tx, entry); err != nil {
			return Entry{}, err
		}
	}
	if in.Confirm {
		number, err := s.numbers.Next(ctx, tx, string(entry.EntryType))
		if err != nil {
			return Entry{}, err
		}
		entry.Status = StatusConfirmed
		entry.DocumentNumber = number
	}
	if entry.Status.Posted() {
		var err error
		if entry, err = s.postStock(ctx, tx, entry); err != nil {
			return Entry{}, err
		}
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Confirm moves a DRAFT entry to CONFIRMED and assigns its document number in the same
// unit of work.
func (s *Service) Confirm(ctx context.Context, id, actorID uuid.UUID) (Entry, error) {
	var confirmed Entry
	err := s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		entry, err := tx.LockEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status != StatusDraft {
			return invalidState("entry %s is %s, only DRAFT can be confirmed", entry.ID, entry.Status)
		}
		if err := s.checkSession(ctx, tx, entry); err != nil {
			return err
		}
		number, err := s.numbers.Next(ctx, tx, string(entry.EntryType))
		if err != nil {
			return err
		}
		entry.Status = StatusConfirmed
		entry.DocumentNumber = number
		entry.UpdatedAt = s.now()
		if entry, err = s.postStock(ctx, tx, entry); err != nil {
			return err
		}
		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		confirmed = entry
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.countConfirmed(confirmed.EntryType)
	s.recordAudit(ctx, actorID, "ledger.confirm", confirmed, map[string]any{
		"document_number": confirmed.DocumentNumber,
	})
	return confirmed, nil
}

// TransitionInTx moves entry to status `to` when the state machine allows it.
func (s *Service) TransitionInTx(ctx context.Context, tx Tx, entry Entry, to Status) (Entry, error) {
	if !CanTransition(entry.EntryType, entry.Status, to) {
		return Entry{}, invalidState("%s entry %s cannot move from %s to %s", entry.EntryType, entry.ID, entry.Status, to)
	}
	entry.Status = to
	entry.UpdatedAt = s.now()
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ReverseInput describes a reversal request.
type ReverseInput struct {
	EntryID uuid.UUID
	Reason  string
	ActorID uuid.UUID
	// CashSessionID attaches the reversal to an OPEN till. When empty the original's
	// session is used while it is still open.
	CashSessionID uuid.NullUUID
}

// ReversalEffect runs inside the reversal unit of work after both entries are written.
type ReversalEffect func(ctx context.Context, tx Tx, r Reversal) error

// Reverse cancels a confirmed entry by writing its structurally inverse entry.
func (s *Service) Reverse(ctx context.Context, in ReverseInput, effects ...ReversalEffect) (Reversal, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Reversal{}, shared.NewValidationError("cancellation reason is required")
	}
	in.Reason = reason
	var result Reversal
	err := s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		original, err := tx.LockEntry(ctx, in.EntryID)
		if err != nil {
			return err
		}
		result, err = s.ReverseInTx(ctx, tx, original, in)
		if err != nil {
			return err
		}
		for _, effect := range effects {
			if err := effect(ctx, tx, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Reversal{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryReversed(string(result.Original.EntryType))
	}
	s.recordAudit(ctx, in.ActorID, "ledger.reverse", result.Original, map[string]any{
		"reversal_id":     result.Reversal.ID.String(),
		"reversal_number": result.Reversal.DocumentNumber,
		"reason":          in.Reason,
	})
	return result, nil
}

// ReverseInTx writes the inverse entry and cancels original, which must be locked by tx.
func (s *Service) ReverseInTx(ctx context.Context, tx Tx, original Entry, in ReverseInput) (Reversal, error) {
	inverse, ok := original.EntryType.ReversalType()
	if !ok {
		return Reversal{}, shared.NewValidationError(fmt.Sprintf("%s entries cannot be reversed", original.EntryType))
	}
	if !original.EntryType.Cancellable(original.Status) {
		return Reversal{}, invalidState("entry %s is %s and cannot be cancelled", original.ID, original.Status)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Reversal{}, shared.NewValidationError("cancellation reason is required")
	}
	userID := ID(in.ActorID)
	if !userID.Valid {
		userID = original.UserID
	}
	sessionID, err := s.reversalSession(ctx, tx, original, in.CashSessionID)
	if err != nil {
		return Reversal{}, err
	}
	lines := make([]Line, len(original.Lines))
	copy(lines, original.Lines)
	reversalIn := CreateInput{
		EntryType:       inverse,
		PaymentMethod:   original.PaymentMethod,
		Confirm:         true,
		Subtotal:        original.Subtotal,
		DiscountAmount:  original.DiscountAmount,
		TaxAmount:       original.TaxAmount,
		Total:           original.Total,
		AmountPaid:      original.AmountPaid,
		BranchID:        original.BranchID,
		PointOfSaleID:   original.PointOfSaleID,
		CashSessionID:   sessionID,
		StorageID:       original.StorageID,
		TargetStorageID: original.TargetStorageID,
		CustomerID:      original.CustomerID,
		SupplierID:      original.SupplierID,
		UserID:          userID,
		CostCenterID:    original.CostCenterID,
		RelatedEntryID:  ID(original.ID),
		Notes:           in.Reason,
		Payload:         &ReversalDetails{CancellationReason: in.Reason},
		Lines:           lines,
	}
	reversal, err := s.CreateInTx(ctx, tx, reversalIn)
	if err != nil {
		return Reversal{}, err
	}
	cancelled, err := s.TransitionInTx(ctx, tx, original, StatusCancelled)
	if err != nil {
		return Reversal{}, err
	}
	return Reversal{Original: cancelled, Reversal: reversal}, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// GetView returns an entry with the document numbers of its reversal chain.
func (s *Service) GetView(ctx context.Context, id uuid.UUID) (EntryView, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return EntryView{}, err
	}
	return s.view(ctx, entry)
}

func (s *Service) view(ctx context.Context, entry Entry) (EntryView, error) {
	view := EntryView{Entry: entry}
	if entry.RelatedEntryID.Valid {
		related, err := s.store.GetEntry(ctx, entry.RelatedEntryID.UUID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return EntryView{}, err
		}
		view.CancelsDocumentNumber = related.DocumentNumber
	}
	if entry.Status == StatusCancelled {
		reversal, err := s.store.FindReversal(ctx, entry.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return EntryView{}, err
		}
		view.CancelledByDocumentNumber = reversal.DocumentNumber
	}
	return view, nil
}

// List returns a page of entries with link decoration.
func (s *Service) List(ctx context.Context, filter EntryFilter) ([]EntryView, shared.Pagination, error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	entries, total, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		v, err := s.view(ctx, e)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		views = append(views, v)
	}
	return views, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// reversalSession picks the till of a reversal: the requested session, else the
// original's session while it still accepts entries.
func (s *Service) reversalSession(ctx context.Context, tx Tx, original Entry, requested uuid.NullUUID) (uuid.NullUUID, error) {
	if requested.Valid || !original.CashSessionID.Valid {
		return requested, nil
	}
	session, err := tx.LockSession(ctx, original.CashSessionID.UUID)
	if errors.Is(err, shared.ErrNotFound) {
		return uuid.NullUUID{}, nil
	}
	if err != nil {
		return uuid.NullUUID{}, err
	}
	if !session.AcceptsEntries() {
		return uuid.NullUUID{}, nil
	}
	return original.CashSessionID, nil
}

func (s *Service) checkSession(ctx context.Context, tx Tx, entry Entry) error {
	if !entry.CashSessionID.Valid {
		return nil
	}
	session, err := tx.LockSession(ctx, entry.CashSessionID.UUID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewValidationError(fmt.Sprintf("cash session %s does not exist", entry.CashSessionID.UUID))
	}
	if err != nil {
		return err
	}
	if !session.AcceptsEntries() {
		return invalidState("cash session %s is %s and accepts no entries", session.ID, session.Status)
	}
	if entry.PointOfSaleID.Valid && entry.PointOfSaleID.UUID != session.PointOfSaleID {
		return shared.NewValidationError("pointOfSaleId does not match the cash session")
	}
	return nil
}

func (s *Service) checkRelated(ctx context.Context, tx Tx, entry Entry) error {
	want, _ := entry.EntryType.RelatedType()
	related, err := tx.GetEntry(ctx, entry.RelatedEntryID.UUID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewValidationError(fmt.Sprintf("related entry %s does not exist", entry.RelatedEntryID.UUID))
	}
	if err != nil {
		return err
	}
	if related.EntryType != want {
		return shared.NewValidationError(fmt.Sprintf("%s may only relate to %s, got %s", entry.EntryType, want, related.EntryType))
	}
	return nil
}

func (s *Service) countConfirmed(t EntryType) {
	if s.metrics != nil {
		s.metrics.EntryConfirmed(string(t))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entry Entry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: entry.ID.String(),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
