package models

import (
	"time"

	"github.com/google/uuid"
)

type ExceptionState string

const (
	ExceptionOpen     ExceptionState = "open"
	ExceptionVerified ExceptionState = "verified"
	ExceptionApproved ExceptionState = "approved"
	ExceptionResolved ExceptionState = "resolved"
)

// Valid reports whether s is one of the known exception states.
func (s ExceptionState) Valid() bool {
	switch s {
	case ExceptionOpen, ExceptionVerified, ExceptionApproved, ExceptionResolved:
		return true
	}
	return false
}

// CanTransition reports whether a case in state s may move to next. Only open
// cases move; the addressed states are terminal.
func (s ExceptionState) CanTransition(next ExceptionState) bool {
	return s == ExceptionOpen && next.Valid() && next != ExceptionOpen
}

// Addressed reports whether an exception in state s no longer blocks
// submission readiness.
func (s ExceptionState) Addressed() bool {
	switch s {
	case ExceptionVerified, ExceptionApproved, ExceptionResolved:
		return true
	}
	return false
}

// ExceptionCase tracks the review of one doubtful decision. Exactly one case
// exists per doubtful merchant_ref per run; cases are never deleted.
type ExceptionCase struct {
	ID          uuid.UUID      `json:"id"`
	RunID       uuid.UUID      `json:"run_id"`
	MerchantRef string         `json:"merchant_ref"`
	Severity    string         `json:"severity"`
	ReasonCodes []string       `json:"reason_codes"`
	State       ExceptionState `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
