package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// EntryType enumerates the closed set of ledger entry kinds.
type EntryType string

const (
	EntryTypeSale             EntryType = "SALE"
	EntryTypeSaleReturn       EntryType = "SALE_RETURN"
	EntryTypePurchase         EntryType = "PURCHASE"
	EntryTypePurchaseReturn   EntryType = "PURCHASE_RETURN"
	EntryTypePaymentIn        EntryType = "PAYMENT_IN"
	EntryTypePaymentOut       EntryType = "PAYMENT_OUT"
	EntryTypeOperatingExpense EntryType = "OPERATING_EXPENSE"
)

// EntryTypes lists every supported type.
var EntryTypes = []EntryType{
	EntryTypeSale,
	EntryTypeSaleReturn,
	EntryTypePurchase,
	EntryTypePurchaseReturn,
	EntryTypePaymentIn,
	EntryTypePaymentOut,
	EntryTypeOperatingExpense,
}

// Valid reports whether t belongs to the closed set.
func (t EntryType) Valid() bool {
	for _, known := range EntryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PurchaseFamily reports whether t follows the reception state machine.
func (t EntryType) PurchaseFamily() bool {
	return t == EntryTypePurchase
}

// ReversalType returns the structurally inverse type used to reverse t.
func (t EntryType) ReversalType() (EntryType, bool) {
	switch t {
	case EntryTypeSale:
		return EntryTypeSaleReturn, true
	case EntryTypePurchase:
		return EntryTypePurchaseReturn, true
	case EntryTypePaymentIn:
		return EntryTypePaymentOut, true
	default:
		return "", false
	}
}

// RelatedType returns the type an entry of type t may point at through RelatedEntryID.
func (t EntryType) RelatedType() (EntryType, bool) {
	switch t {
	case EntryTypeSaleReturn:
		return EntryTypeSale, true
	case EntryTypePurchaseReturn:
		return EntryTypePurchase, true
	case EntryTypePaymentOut:
		return EntryTypePaymentIn, true
	default:
		return "", false
	}
}

// Status is the ledger entry state machine value.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusConfirmed         Status = "CONFIRMED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusCancelled         Status = "CANCELLED"
)

var transitions = map[bool]map[Status][]Status{
	false: {
		StatusDraft:     {StatusConfirmed},
		StatusConfirmed: {StatusCancelled},
	},
	true: {
		StatusDraft:             {StatusConfirmed},
		StatusConfirmed:         {StatusPartiallyReceived, StatusReceived, StatusCancelled},
		StatusPartiallyReceived: {StatusCancelled},
		StatusReceived:          {StatusCancelled},
	},
}

// CanTransition reports whether an entry of type t may move from one status to another.
func CanTransition(t EntryType, from, to Status) bool {
	for _, next := range transitions[t.PurchaseFamily()][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an entry in status s may be reversed.
func (t EntryType) Cancellable(s Status) bool {
	return CanTransition(t, s, StatusCancelled)
}

// Posted reports whether the entry left DRAFT.
func (s Status) Posted() bool {
	return s != "" && s != StatusDraft
}

// PaymentMethod describes how an entry was settled.
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "CASH"
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodTransfer       PaymentMethod = "TRANSFER"
	PaymentMethodInternalCredit PaymentMethod = "INTERNAL_CREDIT"
	PaymentMethodMixed          PaymentMethod = "MIXED"
)

// Valid reports whether m is empty or a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case "", PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodInternalCredit, PaymentMethodMixed:
		return true
	}
	return false
}

// Line is one product line of an entry.
type Line struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

// Discrepant reports whether the received quantity differs from the ordered one.
func (l Line) Discrepant() bool {
	return !l.Quantity.Equal(l.OrderedQuantity)
}

// Entry is a typed, append-mostly ledger record.
type Entry struct {
	ID             uuid.UUID     `json:"id"`
	EntryType      EntryType     `json:"entry_type"`
	Status         Status        `json:"status"`
	DocumentNumber string        `json:"document_number,omitempty"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`

	BranchID          uuid.NullUUID `json:"branch_id"`
	PointOfSaleID     uuid.NullUUID `json:"point_of_sale_id"`
	CashSessionID     uuid.NullUUID `json:"cash_session_id"`
	StorageID         uuid.NullUUID `json:"storage_id"`
	TargetStorageID   uuid.NullUUID `json:"target_storage_id"`
	CustomerID        uuid.NullUUID `json:"customer_id"`
	SupplierID        uuid.NullUUID `json:"supplier_id"`
	UserID            uuid.NullUUID `json:"user_id"`
	CostCenterID      uuid.NullUUID `json:"cost_center_id"`
	ExpenseCategoryID uuid.NullUUID `json:"expense_category_id"`
	RelatedEntryID    uuid.NullUUID `json:"related_entry_id"`

	Notes     string    `json:"notes,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	Lines     []Line    `json:"lines,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryView decorates an entry with the document numbers of its reversal chain.
type EntryView struct {
	Entry
	CancelsDocumentNumber     string `json:"cancels_document_number,omitempty"`
	CancelledByDocumentNumber string `json:"cancelled_by_document_number,omitempty"`
}

// Reversal pairs a cancelled entry with the inverse entry that cancelled it.
type Reversal struct {
	Original Entry `json:"original"`
	Reversal Entry `json:"reversal"`
}

// Schedule returns the credit schedule carried by the entry metadata, if any.
func (e Entry) Schedule() Schedule {
	switch p := e.Metadata.Payload.(type) {
	case *CreditTerms:
		return p.Schedule
	case *PaymentDetails:
		return p.Schedule
	}
	return Schedule{}
}

// PaidQuotaID returns metadata.paidQuotaId of a payment entry.
func (e Entry) PaidQuotaID() string {
	if p, ok := e.Metadata.Payload.(*PaymentDetails); ok {
		return p.PaidQuotaID
	}
	return ""
}

// Reception returns the reception details of a purchase entry.
func (e Entry) Reception() ReceptionDetails {
	if p, ok := e.Metadata.Payload.(*ReceptionDetails); ok {
		return *p
	}
	return ReceptionDetails{}
}

// CancellationReason returns metadata.cancellationReason of a reversal entry.
func (e Entry) CancellationReason() string {
	if p, ok := e.Metadata.Payload.(*ReversalDetails); ok {
		return p.CancellationReason
	}
	return ""
}

// IsCreditBearing reports whether the entry feeds the quota tracker: sales paid on
// internal credit or mixed, and legacy internal-credit customer payments.
func IsCreditBearing(e Entry) bool {
	switch e.EntryType {
	case EntryTypeSale:
		return e.PaymentMethod == PaymentMethodInternalCredit || e.PaymentMethod == PaymentMethodMixed
	case EntryTypePaymentIn:
		return e.PaymentMethod == PaymentMethodInternalCredit
	}
	return false
}

// BalanceHolds checks total = subtotal - discount + tax at currency precision.
func BalanceHolds(subtotal, discount, tax, total decimal.Decimal) bool {
	expected := subtotal.Sub(discount).Add(tax).Round(CurrencyPrecision)
	return expected.Equal(total.Round(CurrencyPrecision))
}

// CurrencyPrecision is the number of decimals of the smallest currency unit.
const CurrencyPrecision = 2

// ID wraps a non-nil identifier as a nullable column value.
func ID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

// ErrDuplicateDocumentNumber marks a collision on (entry_type, document_number).
var ErrDuplicateDocumentNumber = fmt.Errorf("%w: duplicate document number", shared.ErrConflict)

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{shared.ErrInvalidState}, args...)...)
}

func validationf(format string, args ...any) error {
	return shared.NewValidationError(fmt.Sprintf(format, args...))
}
