package models

import (
	"time"

	"github.com/google/uuid"
)

// Next actions derived for the monthly submission scope, in precedence order.
const (
	ActionCompleted         = "completed"
	ActionAddressDoubtful   = "address_doubtful"
	ActionNotifySources     = "notify_sources"
	ActionCreateJournal     = "create_journal"
	ActionSubmitToERP       = "submit_to_erp"
	ActionWaitRunCompletion = "wait_run_completion"
	ActionSendNotifications = "send_notifications"
	ActionCloseDay          = "close_day"
	ActionClosed            = "closed"
	ActionWaitForDailyClose = "wait_for_daily_close"
)

// Daily close states.
const (
	CloseStateOpen         = "open"
	CloseStateReadyToClose = "ready_to_close"
	CloseStateClosed       = "closed"
)

type MonthlyAlertRecipient struct {
	RecipientKey   string   `json:"recipient_key"`
	RecipientLabel string   `json:"recipient_label"`
	Reason         string   `json:"reason"`
	Count          int      `json:"count"`
	MerchantRefs   []string `json:"merchant_refs"`
}

type MonthlyDoubtfulDetail struct {
	MerchantRef    string         `json:"merchant_ref"`
	State          ExceptionState `json:"state"`
	ReasonCodes    []string       `json:"reason_codes"`
	MissingSources []string       `json:"missing_sources"`
	Recipients     []string       `json:"recipients"`
}

// MonthlySubmissionSummary is recomputed from decisions and exceptions on every
// read; only the flags and timestamps come from persisted state.
type MonthlySubmissionSummary struct {
	RunID                uuid.UUID               `json:"run_id"`
	Month                string                  `json:"month"`
	TotalTransactions    int                     `json:"total_transactions"`
	GoodTransactions     int                     `json:"good_transactions"`
	DoubtfulTransactions int                     `json:"doubtful_transactions"`
	AddressedDoubtful    int                     `json:"addressed_doubtful"`
	UnresolvedDoubtful   int                     `json:"unresolved_doubtful"`
	ReadyForSubmission   bool                    `json:"ready_for_submission"`
	NotifiedToSource     bool                    `json:"notified_to_source"`
	JournalCreated       bool                    `json:"journal_created"`
	SubmittedToERP       bool                    `json:"submitted_to_erp"`
	NextAction           string                  `json:"next_action"`
	NotifiedAt           *time.Time              `json:"notified_at"`
	JournalCreatedAt     *time.Time              `json:"journal_created_at"`
	SubmittedAt          *time.Time              `json:"submitted_at"`
	AlertRecipients      []MonthlyAlertRecipient `json:"alert_recipients"`
	DoubtfulDetails      []MonthlyDoubtfulDetail `json:"doubtful_details"`
}

type DailyNotificationTarget struct {
	RecipientKey   string   `json:"recipient_key"`
	RecipientLabel string   `json:"recipient_label"`
	Count          int      `json:"count"`
	MerchantRefs   []string `json:"merchant_refs"`
}

type DailyOpsSummary struct {
	RunID                 uuid.UUID                  `json:"run_id"`
	RunStatus             RunStatus                  `json:"run_status"`
	BusinessDate          string                     `json:"business_date"`
	TotalTransactions     int                        `json:"total_transactions"`
	GoodTransactions      int                        `json:"good_transactions"`
	DoubtfulTransactions  int                        `json:"doubtful_transactions"`
	UnresolvedDoubtful    int                        `json:"unresolved_doubtful"`
	AddressedDoubtful     int                        `json:"addressed_doubtful"`
	NotificationsRequired int                        `json:"notifications_required"`
	NotificationsSent     int                        `json:"notifications_sent"`
	CloseState            string                     `json:"close_state"`
	NextAction            string                     `json:"next_action"`
	ClosedAt              *time.Time                 `json:"closed_at"`
	NotificationTargets   []DailyNotificationTarget  `json:"notification_targets"`
	MonthlyItems          []MonthlySubmissionSummary `json:"monthly_items"`
}

type MonthlyCloseSourceRun struct {
	RunID        uuid.UUID `json:"run_id"`
	RunNumber    string    `json:"run_number"`
	BusinessDate string    `json:"business_date"`
}

type MonthlyCloseBatch struct {
	Month                        string                  `json:"month"`
	SourceRunIDs                 []string                `json:"source_run_ids"`
	SourceRunCount               int                     `json:"source_run_count"`
	SourceRuns                   []MonthlyCloseSourceRun `json:"source_runs"`
	TotalTransactions            int                     `json:"total_transactions"`
	GoodTransactions             int                     `json:"good_transactions"`
	DoubtfulTransactions         int                     `json:"doubtful_transactions"`
	UnresolvedDoubtful           int                     `json:"unresolved_doubtful"`
	DoubtfulNotificationRequired int                     `json:"doubtful_notification_required"`
	DoubtfulNotificationSent     int                     `json:"doubtful_notification_sent"`
	ReadyForERP                  bool                    `json:"ready_for_erp"`
	JournalCreated               bool                    `json:"journal_created"`
	SubmittedToERP               bool                    `json:"submitted_to_erp"`
	NextAction                   string                  `json:"next_action"`
	JournalCreatedAt             *time.Time              `json:"journal_created_at"`
	SubmittedAt                  *time.Time              `json:"submitted_at"`
	ERPSubmissionPayload         *ERPSubmissionPayload   `json:"erp_submission_payload"`
}

type RunSummary struct {
	Run                ReconciliationRun          `json:"run"`
	Decisions          []MatchDecision            `json:"decisions"`
	Exceptions         []ExceptionCase            `json:"exceptions"`
	MonthlySubmissions []MonthlySubmissionSummary `json:"monthly_submissions"`
	DailyOps           *DailyOpsSummary           `json:"daily_ops"`
}
