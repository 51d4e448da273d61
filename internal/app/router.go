package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/cashsession"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
	"github.com/odyssey-erp/odyssey-ledger/internal/receivable"
	"github.com/odyssey-erp/odyssey-ledger/internal/reception"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	LedgerHandler      *ledger.Handler
	CashSessionHandler *cashsession.Handler
	QuotaHandler       *quota.Handler
	ReceivableHandler  *receivable.Handler
	ReceptionHandler   *reception.Handler
	InventoryHandler   *inventory.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the ledger API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.LedgerHandler != nil {
		r.Route("/entries", params.LedgerHandler.MountRoutes)
	}
	if params.CashSessionHandler != nil {
		r.Route("/cash-sessions", params.CashSessionHandler.MountRoutes)
		r.Route("/points-of-sale", params.CashSessionHandler.MountPointOfSaleRoutes)
	}
	if params.QuotaHandler != nil {
		r.Route("/customers", params.QuotaHandler.MountCustomerRoutes)
	}
	if params.ReceivableHandler != nil {
		r.Route("/receivables", params.ReceivableHandler.MountRoutes)
	}
	if params.ReceptionHandler != nil {
		r.Route("/receptions", params.ReceptionHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/storages", params.InventoryHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
