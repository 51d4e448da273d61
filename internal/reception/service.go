package reception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const idempotencyModule = "reception.cancel"

// Service runs the reception workflow on top of the ledger.
type Service struct {
	ledger      *ledger.Service
	idempotency shared.IdempotencyPort
	audit       shared.AuditPort
	logger      *slog.Logger
}

// NewService builds Service. idempotency and audit are optional.
func NewService(entries *ledger.Service, idem shared.IdempotencyPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: entries, idempotency: idem, audit: audit, logger: logger}
}

// Receive records a confirmed PURCHASE and moves it to RECEIVED, or PARTIALLY_RECEIVED when
// any line differs from its ordered quantity. Stock is brought in by the ledger in the
// same unit of work.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (View, error) {
	if err := in.Validate(); err != nil {
		return View{}, err
	}
	lines := in.ledgerLines()
	subtotal := Subtotal(lines)
	create := ledger.CreateInput{
		EntryType:      ledger.EntryTypePurchase,
		PaymentMethod:  in.PaymentMethod,
		Confirm:        true,
		Subtotal:       subtotal,
		DiscountAmount: in.DiscountAmount,
		TaxAmount:      in.TaxAmount,
		Total:          subtotal.Sub(in.DiscountAmount).Add(in.TaxAmount),
		AmountPaid:     in.AmountPaid,
		BranchID:       in.BranchID,
		StorageID:      ledger.ID(in.StorageID),
		SupplierID:     ledger.ID(in.SupplierID),
		UserID:         ledger.ID(in.UserID),
		Notes:          in.Notes,
		Payload: &ledger.ReceptionDetails{
			PurchaseOrderNumber: strings.TrimSpace(in.PurchaseOrderNumber),
			HasDiscrepancies:    HasDiscrepancies(lines),
		},
		Lines: lines,
	}
	if err := create.Validate(); err != nil {
		return View{}, err
	}
	var received ledger.Entry
	err := s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		entry, err := s.ledger.CreateInTx(ctx, tx, create)
		if err != nil {
			return err
		}
		received, err = s.ledger.TransitionInTx(ctx, tx, entry, StatusFor(entry.Lines))
		return err
	})
	if err != nil {
		return View{}, err
	}
	s.recordAudit(ctx, in.UserID, "reception.receive", received.ID, map[string]any{
		"document_number":   received.DocumentNumber,
		"status":            received.Status,
		"has_discrepancies": received.Reception().HasDiscrepancies,
	})
	return NewView(ledger.EntryView{Entry: received}), nil
}

// reserve claims the cancellation key. A key held for an entry that is not cancelled was
// left by an interrupted cancellation; the entry status wins and the caller proceeds without
// owning the key.
func (s *Service) reserve(ctx context.Context, key string, id uuid.UUID) (bool, error) {
	if s.idempotency == nil {
		return false, nil
	}
	err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		return false, shared.PersistenceError("reserve idempotency key", err)
	}
	entry, err := s.ledger.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if entry.Status == ledger.StatusCancelled {
		return false, fmt.Errorf("%w: reception %s was already cancelled", shared.ErrInvalidState, id)
	}
	s.logger.Warn("stale cancellation key ignored", slog.String("key", key), slog.String("status", string(entry.Status)))
	return false, nil
}

// Cancel reverses a reception with a PURCHASE_RETURN. Stock, the return entry and the
// cancelled original are written in one unit of work.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (ledger.Reversal, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return ledger.Reversal{}, shared.NewValidationError("cancellation reason is required")
	}
	key := "reception-cancel:" + in.EntryID.String()
	inserted, err := s.reserve(ctx, key, in.EntryID)
	if err != nil {
		return ledger.Reversal{}, err
	}
	result, err := s.ledger.Reverse(ctx, ledger.ReverseInput{
		EntryID: in.EntryID,
		Reason:  reason,
		ActorID: in.ActorID,
	}, requirePurchase)
	if err != nil {
		if inserted {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("release idempotency key failed", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return ledger.Reversal{}, err
	}
	s.recordAudit(ctx, in.ActorID, "reception.cancel", result.Original.ID, map[string]any{
		"reversal_number": result.Reversal.DocumentNumber,
		"reason":          reason,
	})
	return result, nil
}

func requirePurchase(_ context.Context, _ ledger.Tx, r ledger.Reversal) error {
	if r.Original.EntryType != ledger.EntryTypePurchase {
		return shared.NewValidationError(fmt.Sprintf("entry %s is a %s, not a reception", r.Original.ID, r.Original.EntryType))
	}
	return nil
}

// Get returns a reception with its reversal links.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	v, err := s.ledger.GetView(ctx, id)
	if err != nil {
		return View{}, err
	}
	if v.EntryType != ledger.EntryTypePurchase {
		return View{}, fmt.Errorf("reception %s: %w", id, shared.ErrNotFound)
	}
	return NewView(v), nil
}

// List returns a page of receptions.
func (s *Service) List(ctx context.Context, filter ledger.EntryFilter) ([]View, shared.Pagination, error) {
	filter.Types = []ledger.EntryType{ledger.EntryTypePurchase}
	entries, page, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		views = append(views, NewView(e))
	}
	return views, page, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entryID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "reception",
		EntityID: entryID.String(),
		Meta:     meta,
		At:       s.ledger.Now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
