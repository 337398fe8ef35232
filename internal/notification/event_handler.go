package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payroll-engine/internal/core/events"
)

// EventHandler turns payroll lifecycle events into user notifications.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

// Register subscribes the handler to the payroll events it cares about.
func (h *EventHandler) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePayrollCalculated, h.HandlePayrollEvent)
	bus.Subscribe(events.EventTypePayrollProcessed, h.HandlePayrollEvent)
}

func (h *EventHandler) HandlePayrollEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.PayrollCalculatedEvent:
		h.handleCalculated(e)
	case *events.PayrollProcessedEvent:
		h.handleProcessed(e)
	default:
		h.logger.Warn("unhandled payroll event", "event_type", event.EventType())
	}
	return nil
}

// handleCalculated tells the organization's admins a run awaits review.
func (h *EventHandler) handleCalculated(e *events.PayrollCalculatedEvent) {
	message := fmt.Sprintf("Payroll run %d is ready for review: %d items calculated", e.PayrollRunID, e.CalculatedItems)
	if e.FailedItems > 0 {
		message = fmt.Sprintf("%s, %d failed", message, e.FailedItems)
	}

	h.service.NotifyAdmins(e.OrganizationID,
		TypePayrollPendingApproval,
		"Payroll pending approval",
		message)
}

// handleProcessed tells each paid employee their payslip is available.
func (h *EventHandler) handleProcessed(e *events.PayrollProcessedEvent) {
	h.service.NotifyUsers(e.OrganizationID, e.PaidUserIDs,
		TypePayslipAvailable,
		"Payslip available",
		fmt.Sprintf("Your payslip for %s - %s is ready", e.PeriodStart, e.PeriodEnd))
}
