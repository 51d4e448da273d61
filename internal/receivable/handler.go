package receivable

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler exposes receivable projections.
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

// MountRoutes registers /receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/aging", h.aging)
	r.Get("/export.xlsx", h.export)
}

// ParseQuery reads receivable query parameters.
func ParseQuery(r *http.Request) (Query, error) {
	q := Query{
		Search:      r.URL.Query().Get("search"),
		Page:        httpx.QueryInt(r, "page", 1),
		PerPage:     httpx.QueryInt(r, "per_page", 0),
		IncludePaid: httpx.QueryBool(r, "include_paid"),
	}
	var err error
	if q.CustomerID, err = httpx.QueryUUID(r, "customer_id"); err != nil {
		return Query{}, err
	}
	if q.From, err = httpx.QueryTime(r, "from", false); err != nil {
		return Query{}, err
	}
	if q.To, err = httpx.QueryTime(r, "to", true); err != nil {
		return Query{}, err
	}
	return q, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Project(r.Context(), q)
	if err != nil {
		h.logger.Error("project receivables failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	customerID, err := httpx.QueryUUID(r, "customer_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryTime(r, "as_of", true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Aging(r.Context(), customerID, asOf)
	if err != nil {
		h.logger.Error("receivable aging failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := h.service.Export(r.Context(), q)
	if err != nil {
		h.logger.Error("export receivables failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receivables-`+time.Now().UTC().Format("20060102")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
