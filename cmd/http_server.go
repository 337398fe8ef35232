package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal"
	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/compensation"
	compensationpg "github.com/frahmantamala/payroll-engine/internal/compensation/postgres"
	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/internal/document"
	"github.com/frahmantamala/payroll-engine/internal/employee"
	employeepg "github.com/frahmantamala/payroll-engine/internal/employee/postgres"
	"github.com/frahmantamala/payroll-engine/internal/notification"
	notificationpg "github.com/frahmantamala/payroll-engine/internal/notification/postgres"
	"github.com/frahmantamala/payroll-engine/internal/payroll"
	payrollpg "github.com/frahmantamala/payroll-engine/internal/payroll/postgres"
	"github.com/frahmantamala/payroll-engine/internal/taxrule"
	taxrulepg "github.com/frahmantamala/payroll-engine/internal/taxrule/postgres"
	"github.com/frahmantamala/payroll-engine/internal/transport/rest"
	"github.com/frahmantamala/payroll-engine/internal/transport/swagger"
	"github.com/frahmantamala/payroll-engine/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithConfig(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// GORM rides the same pgx connection pool the health check pings.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	publicKeyPEM, err := config.Security.GetPublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to load jwt public key: %w", err)
	}
	verifier, err := auth.NewVerifier(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to build token verifier: %w", err)
	}

	// A broken OpenAPI document should fail startup, not Swagger UI.
	if _, err := swagger.ValidateSpec(context.Background(), "./api/openapi.yml"); err != nil {
		return nil, err
	}

	bus := events.NewEventBus(lg)

	employeeService := employee.NewService(employeepg.NewEmployeeRepository(gormDB), lg)
	compensationService := compensation.NewService(compensationpg.NewCompensationRepository(gormDB), lg)
	taxRuleService := taxrule.NewService(taxrulepg.NewTaxRuleRepository(gormDB), lg)

	notificationRepo := notificationpg.NewNotificationRepository(gormDB)
	notificationService := notification.NewService(notificationRepo, notificationRepo, lg)
	notification.NewEventHandler(notificationService, lg).Register(bus)

	documents, err := document.NewFileGenerator(config.Documents.StorageDir, config.Documents.BaseURL, lg)
	if err != nil {
		return nil, err
	}

	payrollService := payroll.NewService(
		payrollpg.NewPayrollRepository(gormDB),
		employeeService,
		compensationService,
		taxRuleService,
		documents,
		bus,
		lg,
	)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, verifier, rest.Handlers{
		Payroll:      payroll.NewHandler(payrollService),
		TaxRule:      taxrule.NewHandler(taxRuleService),
		Employee:     employee.NewHandler(employeeService, compensationService),
		Notification: notification.NewHandler(notificationService),
	}, config.Documents.StorageDir, lg)

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		Gorm:   gormDB,
		Router: router,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
