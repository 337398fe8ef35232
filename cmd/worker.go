package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal"
	"github.com/frahmantamala/payroll-engine/internal/core/events"
	eventspg "github.com/frahmantamala/payroll-engine/internal/core/events/postgres"
	"github.com/frahmantamala/payroll-engine/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the domain event relay`,
}

// Outbox relay worker command
var outboxWorkerCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Start the domain event relay",
	Long:  `Relay pending domain events from the outbox table to downstream consumers`,
	Run: func(cmd *cobra.Command, args []string) {
		startOutboxRelay()
	},
}

var (
	relayInterval  time.Duration
	relayBatchSize int
)

// startOutboxRelay polls the outbox table and dispatches pending rows in
// order. Delivery is at-least-once: a crash between dispatch and the
// dispatched_at update replays the event, so consumers must deduplicate.
func startOutboxRelay() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	outbox := eventspg.NewOutboxRepository(gormDB)
	bus := events.NewEventBus(lg)

	// Downstream integrations subscribe here. Until an external broker is
	// wired, dispatch is logged so the outbox still drains.
	for _, eventType := range []string{
		events.EventTypePayrollCalculated,
		events.EventTypePayrollApproved,
		events.EventTypePayrollProcessed,
	} {
		bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			lg.Info("domain event dispatched",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}

	lg.Info("outbox relay started",
		"interval", relayInterval,
		"batch_size", relayBatchSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := relayPending(outbox, bus, lg); err != nil {
				lg.Error("outbox relay pass failed", "error", err)
			}
		case sig := <-sigChan:
			lg.Info("received signal, shutting down outbox relay", "signal", sig)
			if err := db.Close(); err != nil {
				lg.Error("database close error", "error", err)
			}
			return
		}
	}
}

func relayPending(outbox events.OutboxRepository, bus *events.EventBus, lg *slog.Logger) error {
	pending, err := outbox.Pending(relayBatchSize)
	if err != nil {
		return fmt.Errorf("load pending events: %w", err)
	}

	for _, event := range pending {
		// Sync dispatch: a failed handler keeps the row pending for the
		// next pass instead of losing the event.
		ctx, cancel := internal.WithTimeout(context.Background(), relayInterval)
		err := bus.PublishSync(ctx, event.ToBusEvent())
		cancel()
		if err != nil {
			return err
		}
		if err := outbox.MarkDispatched(event.ID, time.Now()); err != nil {
			return fmt.Errorf("mark event %d dispatched: %w", event.ID, err)
		}
	}

	if len(pending) > 0 {
		lg.Info("outbox events relayed", "count", len(pending))
	}
	return nil
}

func init() {
	outboxWorkerCmd.Flags().DurationVar(&relayInterval, "interval", 5*time.Second, "Polling interval for pending events")
	outboxWorkerCmd.Flags().IntVar(&relayBatchSize, "batch-size", 100, "Maximum events relayed per pass")

	workerCmd.AddCommand(outboxWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
