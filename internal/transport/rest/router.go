package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/employee"
	"github.com/frahmantamala/payroll-engine/internal/notification"
	"github.com/frahmantamala/payroll-engine/internal/payroll"
	"github.com/frahmantamala/payroll-engine/internal/taxrule"
	"github.com/frahmantamala/payroll-engine/internal/transport/middleware"
	"github.com/frahmantamala/payroll-engine/internal/transport/swagger"
)

// Handlers bundles the domain handlers the router mounts.
type Handlers struct {
	Payroll      *payroll.Handler
	TaxRule      *taxrule.Handler
	Employee     *employee.Handler
	Notification *notification.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, verifier *auth.Verifier, handlers Handlers, payslipDir string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, payslipDir)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticator(verifier))

			if handlers.Payroll != nil {
				pr.Route("/payroll-runs", func(rr chi.Router) {
					rr.Group(func(vr chi.Router) {
						vr.Use(middleware.RequirePermissions(auth.PermissionViewPayroll, auth.PermissionManagePayroll))
						vr.Get("/", handlers.Payroll.ListRuns)          // GET /payroll-runs
						vr.Get("/{id}", handlers.Payroll.GetRun)        // GET /payroll-runs/:id
						vr.Get("/{id}/items", handlers.Payroll.ListItems) // GET /payroll-runs/:id/items
					})

					rr.Group(func(mr chi.Router) {
						mr.Use(middleware.RequirePermissions(auth.PermissionManagePayroll))
						mr.Post("/", handlers.Payroll.CreateRun)              // POST /payroll-runs
						mr.Post("/{id}/calculate", handlers.Payroll.Calculate) // POST /payroll-runs/:id/calculate
					})

					rr.Group(func(ar chi.Router) {
						ar.Use(middleware.RequirePermissions(auth.PermissionApprovePayroll))
						ar.Post("/{id}/approve", handlers.Payroll.Approve) // POST /payroll-runs/:id/approve
					})

					rr.Group(func(xr chi.Router) {
						xr.Use(middleware.RequirePermissions(auth.PermissionProcessPayroll))
						xr.Post("/{id}/process", handlers.Payroll.Process) // POST /payroll-runs/:id/process
					})
				})
			}

			if handlers.TaxRule != nil {
				pr.Route("/tax-rules", func(tr chi.Router) {
					tr.Group(func(vr chi.Router) {
						vr.Use(middleware.RequirePermissions(auth.PermissionViewPayroll, auth.PermissionManageTaxRules))
						vr.Get("/", handlers.TaxRule.ListRules)
					})

					tr.Group(func(mr chi.Router) {
						mr.Use(middleware.RequirePermissions(auth.PermissionManageTaxRules))
						mr.Post("/", handlers.TaxRule.CreateRule)
						mr.Put("/{id}", handlers.TaxRule.UpdateRule)
						mr.Delete("/{id}", handlers.TaxRule.DeactivateRule)
					})
				})
			}

			if handlers.Employee != nil {
				pr.Route("/employees", func(er chi.Router) {
					er.Group(func(vr chi.Router) {
						vr.Use(middleware.RequirePermissions(auth.PermissionViewPayroll, auth.PermissionManageEmployees))
						vr.Get("/", handlers.Employee.ListEmployees)
						vr.Get("/{id}", handlers.Employee.GetEmployee)
						vr.Get("/{id}/compensations", handlers.Employee.CompensationHistory)
					})

					er.Group(func(mr chi.Router) {
						mr.Use(middleware.RequirePermissions(auth.PermissionManageEmployees))
						mr.Post("/", handlers.Employee.CreateEmployee)
						mr.Post("/{id}/compensations", handlers.Employee.SetCompensation)
					})
				})
			}

			if handlers.Notification != nil {
				pr.Route("/notifications", func(nr chi.Router) {
					nr.Get("/", handlers.Notification.ListMine)
					nr.Patch("/{id}/read", handlers.Notification.MarkRead)
				})
			}

			// Generated payslips are plain files under the storage dir.
			pr.Group(func(dr chi.Router) {
				dr.Use(middleware.RequirePermissions(auth.PermissionViewPayroll))
				dr.Handle("/documents/payslips/*", http.StripPrefix("/api/v1/documents/payslips/",
					http.FileServer(http.Dir(payslipDir))))
			})
		})
	})
}
