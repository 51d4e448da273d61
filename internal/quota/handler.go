package quota

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes derived quotas.
type Handler struct {
	logger  *slog.Logger
	tracker *Tracker
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, tracker *Tracker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, tracker: tracker}
}

// MountCustomerRoutes registers /customers routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/{id}/quotas", h.forCustomer)
}

func (h *Handler) forCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.tracker.ForCustomer(r.Context(), id)
	if err != nil {
		h.logger.Error("derive customer quotas failed", slog.String("customer_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
