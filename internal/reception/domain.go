// Package reception records goods receptions as PURCHASE ledger entries and cancels them
// through PURCHASE_RETURN reversals.
package reception

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineInput is one received product.
type LineInput struct {
	ProductID uuid.UUID
	// OrderedQuantity defaults to ReceivedQuantity for direct receptions.
	OrderedQuantity  decimal.Decimal
	ReceivedQuantity decimal.Decimal
	UnitCost         decimal.Decimal
}

// ReceiveInput describes a reception document.
type ReceiveInput struct {
	SupplierID uuid.UUID
	StorageID  uuid.UUID
	BranchID   uuid.NullUUID
	UserID     uuid.UUID
	// PurchaseOrderNumber is empty for a direct reception.
	PurchaseOrderNumber string
	PaymentMethod       ledger.PaymentMethod
	DiscountAmount      decimal.Decimal
	TaxAmount           decimal.Decimal
	AmountPaid          decimal.Decimal
	Notes               string
	Lines               []LineInput
}

// Validate reports every problem of the reception-specific fields. Ledger rules are
// checked again when the entry is built.
func (in ReceiveInput) Validate() error {
	verr := shared.NewValidationError()
	if in.SupplierID == uuid.Nil {
		verr.Add("supplierId is required")
	}
	if in.StorageID == uuid.Nil {
		verr.Add("storageId is required")
	}
	if len(in.Lines) == 0 {
		verr.Add("at least one line is required")
	}
	for i, l := range in.Lines {
		if l.ReceivedQuantity.IsNegative() || l.OrderedQuantity.IsNegative() {
			verr.Add(fmt.Sprintf("lines[%d] quantities must not be negative", i))
		}
	}
	if in.direct() {
		for i, l := range in.Lines {
			if !l.OrderedQuantity.IsZero() && !l.OrderedQuantity.Equal(l.ReceivedQuantity) {
				verr.Add(fmt.Sprintf("lines[%d] ordered quantity needs a purchaseOrderNumber", i))
			}
		}
	}
	return verr.Err()
}

func (in ReceiveInput) direct() bool {
	return strings.TrimSpace(in.PurchaseOrderNumber) == ""
}

// ledgerLines converts the input lines. A zero ordered quantity on a direct
// reception means "as received".
func (in ReceiveInput) ledgerLines() []ledger.Line {
	out := make([]ledger.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		ordered := l.OrderedQuantity
		if in.direct() && ordered.IsZero() {
			ordered = l.ReceivedQuantity
		}
		out = append(out, ledger.Line{
			ProductID:       l.ProductID,
			Quantity:        l.ReceivedQuantity,
			OrderedQuantity: ordered,
			UnitCost:        l.UnitCost,
		})
	}
	return out
}

// Subtotal is the value of the received goods.
func Subtotal(lines []ledger.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Quantity.Mul(l.UnitCost))
	}
	return sum.Round(ledger.CurrencyPrecision)
}

// HasDiscrepancies reports whether any line was received short or over.
func HasDiscrepancies(lines []ledger.Line) bool {
	for _, l := range lines {
		if l.Discrepant() {
			return true
		}
	}
	return false
}

// StatusFor returns the reception status implied by the lines.
func StatusFor(lines []ledger.Line) ledger.Status {
	if HasDiscrepancies(lines) {
		return ledger.StatusPartiallyReceived
	}
	return ledger.StatusReceived
}

// CancelInput cancels a reception.
type CancelInput struct {
	EntryID uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// View is a reception with its reversal links and discrepant lines.
type View struct {
	ledger.EntryView
	PurchaseOrderNumber string        `json:"purchase_order_number,omitempty"`
	Direct              bool          `json:"direct"`
	HasDiscrepancies    bool          `json:"has_discrepancies"`
	Discrepancies       []ledger.Line `json:"discrepancies,omitempty"`
}

// NewView decorates an entry view.
func NewView(v ledger.EntryView) View {
	details := v.Reception()
	out := View{
		EntryView:           v,
		PurchaseOrderNumber: details.PurchaseOrderNumber,
		Direct:              details.PurchaseOrderNumber == "",
		HasDiscrepancies:    details.HasDiscrepancies,
	}
	for _, l := range v.Lines {
		if l.Discrepant() {
			out.Discrepancies = append(out.Discrepancies, l)
		}
	}
	return out
}
