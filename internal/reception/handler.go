package reception

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineRequest is one line of a ReceiveRequest.
type LineRequest struct {
	ProductID        uuid.UUID       `json:"product_id" validate:"required"`
	OrderedQuantity  decimal.Decimal `json:"ordered_quantity"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

// ReceiveRequest is the JSON body of POST /receptions.
type ReceiveRequest struct {
	SupplierID          uuid.UUID            `json:"supplier_id" validate:"required"`
	StorageID           uuid.UUID            `json:"storage_id" validate:"required"`
	BranchID            *uuid.UUID           `json:"branch_id"`
	PurchaseOrderNumber string               `json:"purchase_order_number" validate:"max=64"`
	PaymentMethod       ledger.PaymentMethod `json:"payment_method"`
	DiscountAmount      decimal.Decimal      `json:"discount_amount"`
	TaxAmount           decimal.Decimal      `json:"tax_amount"`
	AmountPaid          decimal.Decimal      `json:"amount_paid"`
	Notes               string               `json:"notes" validate:"max=2000"`
	Lines               []LineRequest        `json:"lines" validate:"required,min=1,dive"`
}

// CancelRequest is the JSON body of POST /receptions/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Input converts the request.
func (r ReceiveRequest) Input(actorID uuid.UUID) ReceiveInput {
	in := ReceiveInput{
		SupplierID:          r.SupplierID,
		StorageID:           r.StorageID,
		UserID:              actorID,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		PaymentMethod:       r.PaymentMethod,
		DiscountAmount:      r.DiscountAmount,
		TaxAmount:           r.TaxAmount,
		AmountPaid:          r.AmountPaid,
		Notes:               r.Notes,
	}
	if r.BranchID != nil {
		in.BranchID = ledger.ID(*r.BranchID)
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, LineInput(l))
	}
	return in
}

// Handler exposes receptions over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /receptions routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.receive)
	r.Get("/{id}", h.show)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusCreated, View{}, err)
		return
	}
	view, err := h.service.Receive(r.Context(), req.Input(httpx.ActorID(r)))
	h.logFailure("receive goods", err)
	httpx.RespondResult(w, http.StatusCreated, view, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondResult(w, http.StatusOK, ledger.Reversal{}, err)
		return
	}
	var req CancelRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusOK, ledger.Reversal{}, err)
		return
	}
	result, err := h.service.Cancel(r.Context(), CancelInput{EntryID: id, Reason: req.Reason, ActorID: httpx.ActorID(r)})
	h.logFailure("cancel reception", err)
	httpx.RespondResult(w, http.StatusOK, result, err)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// ListResponse is the body of GET /receptions.
type ListResponse struct {
	Receptions []View            `json:"receptions"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := ledger.ParseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logFailure("list receptions", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Receptions: views, Pagination: page})
}

func (h *Handler) logFailure(op string, err error) {
	if err == nil || httpx.StatusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
}
