package ledger

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes ledger entries over JSON.
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

// MountRoutes registers /entries routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/reverse", h.reverse)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusCreated, Entry{}, err)
		return
	}
	in, err := req.Input(httpx.ActorID(r))
	if err != nil {
		httpx.RespondResult(w, http.StatusCreated, Entry{}, err)
		return
	}
	entry, err := h.service.Create(r.Context(), in)
	h.logFailure("create ledger entry", err)
	httpx.RespondResult(w, http.StatusCreated, entry, err)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondResult(w, http.StatusOK, Entry{}, err)
		return
	}
	entry, err := h.service.Confirm(r.Context(), id, httpx.ActorID(r))
	h.logFailure("confirm ledger entry", err)
	httpx.RespondResult(w, http.StatusOK, entry, err)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondResult(w, http.StatusOK, Reversal{}, err)
		return
	}
	var req ReverseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondResult(w, http.StatusOK, Reversal{}, err)
		return
	}
	result, err := h.service.Reverse(r.Context(), ReverseInput{
		EntryID:       id,
		Reason:        req.Reason,
		ActorID:       httpx.ActorID(r),
		CashSessionID: nullable(req.CashSessionID),
	})
	h.logFailure("reverse ledger entry", err)
	httpx.RespondResult(w, http.StatusOK, result, err)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.GetView(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// ListResponse is the body of GET /entries.
type ListResponse struct {
	Entries    []EntryView       `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logFailure("list ledger entries", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Entries: entries, Pagination: page})
}

// ParseFilter reads list query parameters shared by entry listings.
func ParseFilter(r *http.Request) (EntryFilter, error) {
	q := r.URL.Query()
	filter := EntryFilter{
		Search:  q.Get("search"),
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", 0),
	}
	for _, t := range splitList(q.Get("type")) {
		filter.Types = append(filter.Types, EntryType(t))
	}
	for _, s := range splitList(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, Status(s))
	}
	var err error
	ids := []struct {
		name string
		dst  *uuid.NullUUID
	}{
		{"customer_id", &filter.CustomerID},
		{"supplier_id", &filter.SupplierID},
		{"point_of_sale_id", &filter.PointOfSaleID},
		{"cash_session_id", &filter.CashSessionID},
	}
	for _, p := range ids {
		if *p.dst, err = httpx.QueryUUID(r, p.name); err != nil {
			return EntryFilter{}, err
		}
	}
	if filter.From, err = httpx.QueryTime(r, "from", false); err != nil {
		return EntryFilter{}, err
	}
	if filter.To, err = httpx.QueryTime(r, "to", true); err != nil {
		return EntryFilter{}, err
	}
	return filter, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.ToUpper(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *Handler) logFailure(op string, err error) {
	if err == nil || httpx.StatusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
}
