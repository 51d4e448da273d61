package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// BalanceReader reads committed stock state.
type BalanceReader interface {
	ListBalances(ctx context.Context, storageID uuid.UUID) ([]Balance, error)
	StockCard(ctx context.Context, storageID, productID uuid.UUID) ([]Posting, error)
}

// Handler exposes read-only stock endpoints.
type Handler struct {
	logger *slog.Logger
	reader BalanceReader
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, reader BalanceReader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers /storages routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/stock", h.handleBalances)
	r.Get("/{id}/stock/{productID}/card", h.handleStockCard)
}

// BalancesResponse is the body of GET /storages/{id}/stock.
type BalancesResponse struct {
	StorageID uuid.UUID `json:"storage_id"`
	Balances  []Balance `json:"balances"`
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	storageID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balances, err := h.reader.ListBalances(r.Context(), storageID)
	if err != nil {
		h.logger.Error("list stock balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if balances == nil {
		balances = []Balance{}
	}
	httpx.JSON(w, http.StatusOK, BalancesResponse{StorageID: storageID, Balances: balances})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	storageID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.PathUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	card, err := h.reader.StockCard(r.Context(), storageID, productID)
	if err != nil {
		h.logger.Error("stock card", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if card == nil {
		card = []Posting{}
	}
	httpx.JSON(w, http.StatusOK, card)
}
