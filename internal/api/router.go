package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/netgrid/mesh-acl-manager/internal/api/handler"
	"github.com/netgrid/mesh-acl-manager/internal/api/middleware"
	"github.com/netgrid/mesh-acl-manager/internal/rules"
	"github.com/netgrid/mesh-acl-manager/internal/service"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	acls *service.ACLService,
	ruleService *rules.Service,
	dirSync *service.DirectorySync,
	bootstrapKey string,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Directory
		networkHandler := handler.NewNetworkHandler(store, dirSync)
		r.Get("/networks", networkHandler.List)
		r.Post("/sync", networkHandler.Sync)

		// Network-scoped resources
		r.Route("/networks/{network_id}", func(r chi.Router) {
			r.Get("/entities", networkHandler.ListEntities)
			r.Get("/tags", networkHandler.ListTags)

			// ACL matrix
			aclHandler := handler.NewACLHandler(acls)
			r.Get("/acls", aclHandler.Get)
			r.Put("/acls", aclHandler.Put)
			r.Get("/acls/versions", aclHandler.ListVersions)

			// Policy rules
			ruleHandler := handler.NewRuleHandler(ruleService, dirSync)
			r.Post("/rules", ruleHandler.Create)
			r.Get("/rules", ruleHandler.List)
			r.Get("/rules/{id}", ruleHandler.Get)
			r.Put("/rules/{id}", ruleHandler.Update)
			r.Delete("/rules/{id}", ruleHandler.Delete)

			// Flow authorization queries
			queryHandler := handler.NewQueryHandler(store)
			r.Post("/query", queryHandler.Query)
		})
	})

	return r
}
