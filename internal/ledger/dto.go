package ledger

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRequest is the JSON body of POST /entries.
type CreateRequest struct {
	EntryType     string          `json:"entry_type" validate:"required"`
	PaymentMethod string          `json:"payment_method"`
	Confirm       bool            `json:"confirm"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount_amount"`
	Tax           decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`

	BranchID          *uuid.UUID `json:"branch_id,omitempty"`
	PointOfSaleID     *uuid.UUID `json:"point_of_sale_id,omitempty"`
	CashSessionID     *uuid.UUID `json:"cash_session_id,omitempty"`
	StorageID         *uuid.UUID `json:"storage_id,omitempty"`
	TargetStorageID   *uuid.UUID `json:"target_storage_id,omitempty"`
	CustomerID        *uuid.UUID `json:"customer_id,omitempty"`
	SupplierID        *uuid.UUID `json:"supplier_id,omitempty"`
	CostCenterID      *uuid.UUID `json:"cost_center_id,omitempty"`
	ExpenseCategoryID *uuid.UUID `json:"expense_category_id,omitempty"`
	RelatedEntryID    *uuid.UUID `json:"related_entry_id,omitempty"`

	Notes    string          `json:"notes" validate:"max=2000"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Lines    []LineRequest   `json:"lines" validate:"omitempty,dive"`
}

// LineRequest is one product line of a request.
type LineRequest struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

// ToLines converts request lines.
func ToLines(in []LineRequest) []Line {
	if len(in) == 0 {
		return nil
	}
	out := make([]Line, len(in))
	for i, l := range in {
		out[i] = Line{ProductID: l.ProductID, Quantity: l.Quantity, OrderedQuantity: l.OrderedQuantity, UnitCost: l.UnitCost}
	}
	return out
}

// Input converts the request, decoding metadata against the declared type.
func (req CreateRequest) Input(actorID uuid.UUID) (CreateInput, error) {
	in := CreateInput{
		EntryType:         EntryType(req.EntryType),
		PaymentMethod:     PaymentMethod(req.PaymentMethod),
		Confirm:           req.Confirm,
		Subtotal:          req.Subtotal,
		DiscountAmount:    req.Discount,
		TaxAmount:         req.Tax,
		Total:             req.Total,
		AmountPaid:        req.AmountPaid,
		BranchID:          nullable(req.BranchID),
		PointOfSaleID:     nullable(req.PointOfSaleID),
		CashSessionID:     nullable(req.CashSessionID),
		StorageID:         nullable(req.StorageID),
		TargetStorageID:   nullable(req.TargetStorageID),
		CustomerID:        nullable(req.CustomerID),
		SupplierID:        nullable(req.SupplierID),
		UserID:            ID(actorID),
		CostCenterID:      nullable(req.CostCenterID),
		ExpenseCategoryID: nullable(req.ExpenseCategoryID),
		RelatedEntryID:    nullable(req.RelatedEntryID),
		Notes:             req.Notes,
		Lines:             ToLines(req.Lines),
	}
	if !in.EntryType.Valid() {
		return in, in.Validate()
	}
	meta, err := DecodeMetadata(in.EntryType, req.Metadata)
	if err != nil {
		return CreateInput{}, validationf("metadata: %v", err)
	}
	return in.WithMetadata(meta), nil
}

// ReverseRequest is the JSON body of POST /entries/{id}/reverse.
type ReverseRequest struct {
	Reason        string     `json:"reason" validate:"required,max=500"`
	CashSessionID *uuid.UUID `json:"cash_session_id,omitempty"`
}

func nullable(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return ID(*id)
}
