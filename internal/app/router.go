package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridianpos/meridian/internal/attributes"
	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/categories"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/observability"
	"github.com/meridianpos/meridian/internal/rules"
	"github.com/meridianpos/meridian/internal/sales"
	"github.com/meridianpos/meridian/internal/variants"
	"github.com/meridianpos/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	ProductsHandler   *products.Handler
	CategoriesHandler *categories.Handler
	AttributesHandler *attributes.Handler
	RulesHandler      *rules.Handler
	VariantsHandler   *variants.Handler
	InventoryHandler  *inventory.Handler
	SalesHandler      *sales.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.CategoriesHandler != nil {
			r.Route("/categories", params.CategoriesHandler.MountRoutes)
		}
		if params.AttributesHandler != nil {
			r.Route("/attributes", params.AttributesHandler.MountRoutes)
		}
		if params.RulesHandler != nil {
			r.Route("/rules", params.RulesHandler.MountRoutes)
		}
		if params.VariantsHandler != nil {
			r.Route("/variants", params.VariantsHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
