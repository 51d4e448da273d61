package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys persisted in ledger_entries.metadata.
const (
	KeySubPayments          = "subPayments"
	KeyInternalCreditQuotas = "internalCreditQuotas"
	KeyPurchaseOrderNumber  = "purchaseOrderNumber"
	KeyHasDiscrepancies     = "hasDiscrepancies"
	KeyCancellationReason   = "cancellationReason"
	KeyPaidQuotaID          = "paidQuotaId"
)

// Payload is the typed metadata of one entry type.
type Payload interface {
	keys() []string
}

// ScheduledQuota is one installment of a credit schedule.
type ScheduledQuota struct {
	ID      string          `json:"id,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"dueDate"`
}

// MarshalJSON keeps amounts as JSON numbers.
func (q ScheduledQuota) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string      `json:"id,omitempty"`
		Amount  json.Number `json:"amount"`
		DueDate string      `json:"dueDate"`
	}{ID: q.ID, Amount: json.Number(q.Amount.String()), DueDate: q.DueDate})
}

// Due parses DueDate.
func (q ScheduledQuota) Due() (time.Time, error) {
	return ParseDueDate(q.DueDate)
}

// Schedule is the pair of schedule arrays; the first non-empty one wins.
type Schedule struct {
	SubPayments          []ScheduledQuota `json:"subPayments,omitempty"`
	InternalCreditQuotas []ScheduledQuota `json:"internalCreditQuotas,omitempty"`
}

// Quotas returns the effective schedule.
func (s Schedule) Quotas() []ScheduledQuota {
	if len(s.SubPayments) > 0 {
		return s.SubPayments
	}
	return s.InternalCreditQuotas
}

// CreditTerms is the SALE payload.
type CreditTerms struct {
	Schedule
}

func (*CreditTerms) keys() []string { return []string{KeySubPayments, KeyInternalCreditQuotas} }

// PaymentDetails is the PAYMENT_IN payload.
type PaymentDetails struct {
	PaidQuotaID string `json:"paidQuotaId,omitempty"`
	Schedule
}

func (*PaymentDetails) keys() []string {
	return []string{KeyPaidQuotaID, KeySubPayments, KeyInternalCreditQuotas}
}

// ReceptionDetails is the PURCHASE payload.
type ReceptionDetails struct {
	PurchaseOrderNumber string `json:"purchaseOrderNumber,omitempty"`
	HasDiscrepancies    bool   `json:"hasDiscrepancies"`
}

func (*ReceptionDetails) keys() []string {
	return []string{KeyPurchaseOrderNumber, KeyHasDiscrepancies}
}

// ReversalDetails is the payload of SALE_RETURN, PURCHASE_RETURN and PAYMENT_OUT.
type ReversalDetails struct {
	CancellationReason string `json:"cancellationReason,omitempty"`
}

func (*ReversalDetails) keys() []string { return []string{KeyCancellationReason} }

// ExpenseDetails is the OPERATING_EXPENSE payload; it has no typed keys.
type ExpenseDetails struct{}

func (*ExpenseDetails) keys() []string { return nil }

// NewPayload returns the empty payload for t.
func NewPayload(t EntryType) Payload {
	switch t {
	case EntryTypeSale:
		return &CreditTerms{}
	case EntryTypePaymentIn:
		return &PaymentDetails{}
	case EntryTypePurchase:
		return &ReceptionDetails{}
	case EntryTypeSaleReturn, EntryTypePurchaseReturn, EntryTypePaymentOut:
		return &ReversalDetails{}
	default:
		return &ExpenseDetails{}
	}
}

// PayloadMatches reports whether p is the payload kind of t.
func PayloadMatches(t EntryType, p Payload) bool {
	if p == nil {
		return true
	}
	return reflect.TypeOf(p) == reflect.TypeOf(NewPayload(t))
}

// Metadata is the per-type payload plus keys this service does not interpret.
type Metadata struct {
	Payload Payload
	extra   map[string]json.RawMessage
}

// NewMetadata wraps a payload.
func NewMetadata(p Payload) Metadata {
	return Metadata{Payload: p}
}

// Extra returns the raw value of an uninterpreted key.
func (m Metadata) Extra(key string) (json.RawMessage, bool) {
	raw, ok := m.extra[key]
	return raw, ok
}

// MarshalJSON renders the flat metadata object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return EncodeMetadata(m)
}

// EncodeMetadata serialises metadata into the flat persisted object.
func EncodeMetadata(m Metadata) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.extra)+3)
	for k, v := range m.extra {
		out[k] = v
	}
	if m.Payload != nil {
		body, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("ledger: encode metadata: %w", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("ledger: encode metadata: %w", err)
		}
		for k, v := range fields {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// DecodeMetadata parses the persisted object into the payload of t, keeping unknown keys.
func DecodeMetadata(t EntryType, raw []byte) (Metadata, error) {
	payload := NewPayload(t)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Metadata{Payload: payload}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Metadata{}, fmt.Errorf("ledger: decode metadata: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return Metadata{}, fmt.Errorf("ledger: decode %s metadata: %w", t, err)
	}
	for _, k := range payload.keys() {
		delete(fields, k)
	}
	if len(fields) == 0 {
		fields = nil
	}
	return Metadata{Payload: payload, extra: fields}, nil
}

// CloneMetadata deep-copies m through its persisted form.
func CloneMetadata(t EntryType, m Metadata) (Metadata, error) {
	raw, err := EncodeMetadata(m)
	if err != nil {
		return Metadata{}, err
	}
	return DecodeMetadata(t, raw)
}

var dueDateLayouts = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"}

// ParseDueDate accepts calendar dates and RFC3339 timestamps. Calendar dates are UTC midnight.
func ParseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ledger: invalid due date %q", s)
}
