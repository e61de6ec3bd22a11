package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus - статус цикла или прогона диапазона
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// CycleRun - один проход по всем диапазонам
type CycleRun struct {
	ID         uuid.UUID  `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Ranges     []RangeRun `json:"ranges,omitempty"`
}

// RangeRun - результат обработки одного диапазона
type RangeRun struct {
	ID         uuid.UUID  `json:"id"`
	CycleID    uuid.UUID  `json:"cycle_id"`
	RangeName  string     `json:"range_name"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`

	RowsTotal    int `json:"rows_total"`
	ReportRows   int `json:"report_rows"`
	RowsChanged  int `json:"rows_changed"`
	BelowFloor   int `json:"below_floor"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	NetworkFails int `json:"network_failed"`

	Updates []UpdateItem `json:"updates,omitempty"`
}

// NewRangeRun создает запись о начале обработки диапазона
func NewRangeRun(cycleID uuid.UUID, rangeName string, now time.Time) *RangeRun {
	return &RangeRun{
		ID:        uuid.New(),
		CycleID:   cycleID,
		RangeName: rangeName,
		StartedAt: now,
		Status:    RunRunning,
	}
}

// Finish фиксирует итог прогона
func (r *RangeRun) Finish(now time.Time, err error) {
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
}

// ApplyDispatch переносит счетчики отправки в прогон
func (r *RangeRun) ApplyDispatch(report DispatchReport) {
	r.Updates = report.Items
	r.Accepted = report.Count(OutcomeAccepted)
	r.Rejected = report.Count(OutcomeRejected)
	r.NetworkFails = report.Count(OutcomeNetworkFailed)
}
