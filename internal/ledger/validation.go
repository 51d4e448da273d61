package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CreateInput carries every caller-supplied field of a new entry.
type CreateInput struct {
	EntryType     EntryType
	PaymentMethod PaymentMethod
	// Confirm creates the entry directly in CONFIRMED with a document number.
	Confirm bool

	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal

	BranchID          uuid.NullUUID
	PointOfSaleID     uuid.NullUUID
	CashSessionID     uuid.NullUUID
	StorageID         uuid.NullUUID
	TargetStorageID   uuid.NullUUID
	CustomerID        uuid.NullUUID
	SupplierID        uuid.NullUUID
	UserID            uuid.NullUUID
	CostCenterID      uuid.NullUUID
	ExpenseCategoryID uuid.NullUUID
	RelatedEntryID    uuid.NullUUID

	Notes   string
	Payload Payload
	Lines   []Line

	extra map[string]json.RawMessage
}

// WithMetadata takes the payload and the uninterpreted keys from m.
func (in CreateInput) WithMetadata(m Metadata) CreateInput {
	in.Payload = m.Payload
	in.extra = m.extra
	return in
}

// Validate checks structural and business rules and reports every violation.
func (in CreateInput) Validate() error {
	verr := shared.NewValidationError()
	if !in.EntryType.Valid() {
		verr.Add(fmt.Sprintf("entryType %q is not supported", in.EntryType))
		return verr
	}
	if !in.PaymentMethod.Valid() {
		verr.Add(fmt.Sprintf("paymentMethod %q is not supported", in.PaymentMethod))
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", in.Subtotal},
		{"discountAmount", in.DiscountAmount},
		{"taxAmount", in.TaxAmount},
		{"total", in.Total},
		{"amountPaid", in.AmountPaid},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			verr.Add(a.name + " must not be negative")
		}
	}
	if !BalanceHolds(in.Subtotal, in.DiscountAmount, in.TaxAmount, in.Total) {
		verr.Add(fmt.Sprintf("total %s does not equal subtotal - discountAmount + taxAmount (%s)",
			in.Total.StringFixed(CurrencyPrecision),
			in.Subtotal.Sub(in.DiscountAmount).Add(in.TaxAmount).StringFixed(CurrencyPrecision)))
	}

	switch in.EntryType {
	case EntryTypeSale:
		if !in.PointOfSaleID.Valid {
			verr.Add("pointOfSaleId is required for SALE")
		}
		if (in.PaymentMethod == PaymentMethodInternalCredit || in.PaymentMethod == PaymentMethodMixed) && !in.CustomerID.Valid {
			verr.Add("customerId is required for credit sales")
		}
	case EntryTypeOperatingExpense:
		if !in.ExpenseCategoryID.Valid {
			verr.Add("expenseCategoryId is required for OPERATING_EXPENSE")
		}
		if !in.CostCenterID.Valid {
			verr.Add("costCenterId is required for OPERATING_EXPENSE")
		}
	case EntryTypePurchase:
		if !in.SupplierID.Valid {
			verr.Add("supplierId is required for PURCHASE")
		}
	case EntryTypePaymentIn:
		if in.PaymentMethod == PaymentMethodInternalCredit && !in.CustomerID.Valid {
			verr.Add("customerId is required for internal-credit payments")
		}
	}
	if in.RelatedEntryID.Valid {
		if _, ok := in.EntryType.RelatedType(); !ok {
			verr.Add(fmt.Sprintf("relatedEntryId is not allowed on %s", in.EntryType))
		}
	}
	if len(in.Lines) > 0 && !in.StorageID.Valid {
		verr.Add("storageId is required when lines are present")
	}
	for i, line := range in.Lines {
		if line.ProductID == uuid.Nil {
			verr.Add(fmt.Sprintf("lines[%d].productId is required", i))
		}
		if line.Quantity.IsNegative() || line.OrderedQuantity.IsNegative() {
			verr.Add(fmt.Sprintf("lines[%d] quantities must not be negative", i))
		}
		if line.UnitCost.IsNegative() {
			verr.Add(fmt.Sprintf("lines[%d].unitCost must not be negative", i))
		}
	}

	if !PayloadMatches(in.EntryType, in.Payload) {
		verr.Add(fmt.Sprintf("metadata payload %T does not belong to %s", in.Payload, in.EntryType))
	} else {
		validateSchedule(verr, in)
	}
	return verr.Err()
}

func validateSchedule(verr *shared.ValidationError, in CreateInput) {
	var schedule Schedule
	switch p := in.Payload.(type) {
	case *CreditTerms:
		schedule = p.Schedule
	case *PaymentDetails:
		schedule = p.Schedule
		if strings.TrimSpace(p.PaidQuotaID) != p.PaidQuotaID {
			verr.Add("paidQuotaId must not carry surrounding spaces")
		}
	default:
		return
	}
	quotas := schedule.Quotas()
	if len(quotas) == 0 {
		return
	}
	sum := decimal.Zero
	seen := make(map[string]struct{}, len(quotas))
	for i, q := range quotas {
		if !q.Amount.IsPositive() {
			verr.Add(fmt.Sprintf("quota %d amount must be positive", i+1))
		}
		if _, err := q.Due(); err != nil {
			verr.Add(fmt.Sprintf("quota %d dueDate %q is not a date", i+1, q.DueDate))
		}
		if q.ID != "" {
			if _, dup := seen[q.ID]; dup {
				verr.Add(fmt.Sprintf("quota id %q is repeated", q.ID))
			}
			seen[q.ID] = struct{}{}
		}
		sum = sum.Add(q.Amount)
	}
	if !sum.Round(CurrencyPrecision).Equal(in.Total.Round(CurrencyPrecision)) {
		verr.Add(fmt.Sprintf("quota amounts sum to %s but total is %s",
			sum.StringFixed(CurrencyPrecision), in.Total.StringFixed(CurrencyPrecision)))
	}
}
