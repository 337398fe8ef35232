package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect and exercise the payroll event bus`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a synthetic payroll event",
	Long:  `Publish a synthetic payroll lifecycle event to a local bus to exercise handlers`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var eventRunID int64

var knownEventTypes = map[string]bool{
	events.EventTypePayrollCalculated: true,
	events.EventTypePayrollApproved:   true,
	events.EventTypePayrollProcessed:  true,
}

func publishTestEvent(eventType string) {
	lg := logger.LoggerWrapper()

	if !knownEventTypes[eventType] {
		fmt.Fprintf(os.Stderr, "Unknown event type %q; expected one of %s, %s, %s\n",
			eventType,
			events.EventTypePayrollCalculated,
			events.EventTypePayrollApproved,
			events.EventTypePayrollProcessed)
		os.Exit(1)
	}

	bus := events.NewEventBus(lg)
	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.BaseEvent{
		ID:        fmt.Sprintf("cli-%d", time.Now().Unix()),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"payroll_run_id": eventRunID,
			"source":         "cli-command",
		},
	}

	lg.Info("publishing synthetic event", "event_type", eventType, "event_id", testEvent.ID)

	if err := bus.Publish(context.Background(), testEvent); err != nil {
		lg.Error("failed to publish event", "error", err)
		return
	}

	// Publish dispatches async; give the handler a beat before exiting.
	time.Sleep(100 * time.Millisecond)
	lg.Info("synthetic event published")
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventRunID, "run-id", 1, "Payroll run id to stamp on the event payload")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
