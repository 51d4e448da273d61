package cashsession

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

// OpenRequest is the JSON body of POST /cash-sessions.
type OpenRequest struct {
	PointOfSaleID uuid.UUID       `json:"point_of_sale_id" validate:"required"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

// CloseRequest is the JSON body of POST /cash-sessions/{id}/close.
type CloseRequest struct {
	ClosingAmount decimal.Decimal `json:"closing_amount"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

// ReconcileRequest is the JSON body of POST /cash-sessions/{id}/reconcile.
type ReconcileRequest struct {
	AdjustedBalance decimal.NullDecimal `json:"adjusted_balance"`
	Notes           string              `json:"notes" validate:"max=2000"`
}

// Handler exposes cash sessions over JSON.
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

// MountRoutes registers /cash-sessions routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.open)
	r.Get("/{id}", h.show)
	r.Get("/{id}/summary", h.summary)
	r.Post("/{id}/close", h.close)
	r.Post("/{id}/reconcile", h.reconcile)
	r.Get("/{id}/report.pdf", h.report)
}

// MountPointOfSaleRoutes registers /points-of-sale routes.
func (h *Handler) MountPointOfSaleRoutes(r chi.Router) {
	r.Get("/{posID}/cash-session", h.current)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusCreated, ledger.CashSession{}, err)
		return
	}
	session, err := h.service.Open(r.Context(), OpenInput{
		PointOfSaleID: req.PointOfSaleID,
		OpenedByID:    httpx.ActorID(r),
		OpeningAmount: req.OpeningAmount,
		Notes:         req.Notes,
	})
	h.logFailure("open cash session", err)
	httpx.RespondResult(w, http.StatusCreated, session, err)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondResult(w, http.StatusOK, View{}, err)
		return
	}
	var req CloseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusOK, View{}, err)
		return
	}
	view, err := h.service.Close(r.Context(), CloseInput{
		SessionID:     id,
		ClosedByID:    httpx.ActorID(r),
		ClosingAmount: req.ClosingAmount,
		Notes:         req.Notes,
	})
	h.logFailure("close cash session", err)
	httpx.RespondResult(w, http.StatusOK, view, err)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondResult(w, http.StatusOK, ledger.CashSession{}, err)
		return
	}
	var req ReconcileRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusOK, ledger.CashSession{}, err)
		return
	}
	session, err := h.service.Reconcile(r.Context(), ReconcileInput{
		SessionID:      id,
		ActorID:        httpx.ActorID(r),
		AdjustedAmount: req.AdjustedBalance,
		Notes:          req.Notes,
	})
	h.logFailure("reconcile cash session", err)
	httpx.RespondResult(w, http.StatusOK, session, err)
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

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	posID, err := httpx.PathUUID(r, "posID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.Current(r.Context(), posID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// ListResponse is the body of GET /cash-sessions.
type ListResponse struct {
	Sessions   []View            `json:"sessions"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ledger.SessionFilter{
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", 0),
	}
	var err error
	if filter.PointOfSaleID, err = httpx.QueryUUID(r, "point_of_sale_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []ledger.SessionStatus{ledger.SessionStatus(status)}
	}
	if filter.From, err = httpx.QueryTime(r, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryTime(r, "to", true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sessions, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logFailure("list cash sessions", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Sessions: sessions, Pagination: page})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := h.service.Report(r.Context(), id)
	if err != nil {
		h.logFailure("render cash session report", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"cash-session-"+id.String()+".pdf\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) logFailure(op string, err error) {
	if err == nil || httpx.StatusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
}
