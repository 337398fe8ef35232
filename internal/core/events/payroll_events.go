package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePayrollCalculated = "payroll.calculated"
	EventTypePayrollApproved   = "payroll.approved"
	EventTypePayrollProcessed  = "payroll.processed"
)

type PayrollCalculatedEvent struct {
	BaseEvent
	PayrollRunID           int64 `json:"payroll_run_id"`
	OrganizationID         int64 `json:"organization_id"`
	TotalGrossMinor        int64 `json:"total_gross_minor"`
	TotalNetMinor          int64 `json:"total_net_minor"`
	TotalEmployerCostMinor int64 `json:"total_employer_cost_minor"`
	CalculatedItems        int   `json:"calculated_items"`
	FailedItems            int   `json:"failed_items"`
}

func NewPayrollCalculatedEvent(runID, organizationID, totalGross, totalNet, totalEmployerCost int64, calculated, failed int) *PayrollCalculatedEvent {
	return &PayrollCalculatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayrollCalculated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payroll_run_id":            runID,
				"organization_id":           organizationID,
				"total_gross_minor":         totalGross,
				"total_net_minor":           totalNet,
				"total_employer_cost_minor": totalEmployerCost,
				"calculated_items":          calculated,
				"failed_items":              failed,
			},
		},
		PayrollRunID:           runID,
		OrganizationID:         organizationID,
		TotalGrossMinor:        totalGross,
		TotalNetMinor:          totalNet,
		TotalEmployerCostMinor: totalEmployerCost,
		CalculatedItems:        calculated,
		FailedItems:            failed,
	}
}

type PayrollApprovedEvent struct {
	BaseEvent
	PayrollRunID   int64 `json:"payroll_run_id"`
	OrganizationID int64 `json:"organization_id"`
	ApprovedByID   int64 `json:"approved_by_id"`
}

func NewPayrollApprovedEvent(runID, organizationID, approvedByID int64) *PayrollApprovedEvent {
	return &PayrollApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayrollApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payroll_run_id":  runID,
				"organization_id": organizationID,
				"approved_by_id":  approvedByID,
			},
		},
		PayrollRunID:   runID,
		OrganizationID: organizationID,
		ApprovedByID:   approvedByID,
	}
}

type PayrollProcessedEvent struct {
	BaseEvent
	PayrollRunID   int64  `json:"payroll_run_id"`
	OrganizationID int64  `json:"organization_id"`
	PeriodStart    string `json:"period_start"`
	PeriodEnd      string `json:"period_end"`
	// User accounts of employees whose payslips became available.
	PaidUserIDs []int64 `json:"paid_user_ids"`
}

func NewPayrollProcessedEvent(runID, organizationID int64, periodStart, periodEnd string, paidUserIDs []int64) *PayrollProcessedEvent {
	return &PayrollProcessedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayrollProcessed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payroll_run_id":  runID,
				"organization_id": organizationID,
				"period_start":    periodStart,
				"period_end":      periodEnd,
				"paid_user_ids":   paidUserIDs,
			},
		},
		PayrollRunID:   runID,
		OrganizationID: organizationID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		PaidUserIDs:    paidUserIDs,
	}
}
