package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunCounters struct {
	Total      int `json:"total"`
	Good       int `json:"good"`
	Doubtful   int `json:"doubtful"`
	Exceptions int `json:"exceptions"`
}

// ReconciliationRun tracks one daily reconciliation pass over the three sources.
type ReconciliationRun struct {
	ID          uuid.UUID   `json:"id"`
	RunNumber   string      `json:"run_number"`
	Status      RunStatus   `json:"status"`
	Stage       string      `json:"stage"`
	InitiatedBy string      `json:"initiated_by"`
	Counters    RunCounters `json:"counters"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewRunNumber derives the short human-readable run identifier shown in
// notifications and monthly close views.
func NewRunNumber(id uuid.UUID) string {
	compact := strings.ReplaceAll(id.String(), "-", "")
	return "RUN-" + strings.ToUpper(compact[:8])
}
