package models

import "time"

// MonthlySubmissionState is the only persisted workflow memory for one
// run x month bucket. Counts and readiness are recomputed on every read.
type MonthlySubmissionState struct {
	NotifiedToSource    bool       `json:"notified_to_source"`
	JournalCreated      bool       `json:"journal_created"`
	SubmittedToERP      bool       `json:"submitted_to_erp"`
	NotifiedAt          *time.Time `json:"notified_at,omitempty"`
	JournalCreatedAt    *time.Time `json:"journal_created_at,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	DoubtfulAddressedAt *time.Time `json:"doubtful_addressed_at,omitempty"`
}

// DailyOpsState is the only persisted workflow memory for one run's day.
type DailyOpsState struct {
	BusinessDate string     `json:"business_date,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// ERPSubmissionPayload is the snapshot handed to the ERP when a consolidated
// monthly batch is submitted. Reverting the submission discards it.
type ERPSubmissionPayload struct {
	Month                    string   `json:"month"`
	SourceRunIDs             []string `json:"source_run_ids"`
	ExpectedGoodTransactions int      `json:"expected_good_transactions"`
	TotalTransactions        int      `json:"total_transactions"`
	SubmittedBy              string   `json:"submitted_by"`
}

// MonthlyCloseState is the only persisted workflow memory for one calendar
// month across runs.
type MonthlyCloseState struct {
	JournalCreated       bool                  `json:"journal_created"`
	SubmittedToERP       bool                  `json:"submitted_to_erp"`
	JournalCreatedAt     *time.Time            `json:"journal_created_at,omitempty"`
	SubmittedAt          *time.Time            `json:"submitted_at,omitempty"`
	ERPSubmissionPayload *ERPSubmissionPayload `json:"erp_submission_payload,omitempty"`
}
