// Package store provides the keyed JSON document store backing all workflow
// persistence. Every record is a (collection, key) -> document entry saved
// atomically; aggregation never happens here.
package store

import (
	"context"
	"encoding/json"
)

// Collection names.
const (
	CollectionRuns               = "runs"
	CollectionDecisions          = "decisions"
	CollectionExceptions         = "exceptions"
	CollectionMonthlySubmissions = "monthly_submissions"
	CollectionDailyOps           = "daily_ops"
	CollectionMonthlyClose       = "monthly_close"
	CollectionAnnouncements      = "announcements"
	CollectionAuditEvents        = "audit_events"
)

// Store is the abstract keyed document store.
type Store interface {
	// Get loads the document at (collection, key) into out. Returns
	// apperr.NotFoundError when the key is absent.
	Get(ctx context.Context, collection, key string, out any) error
	// Put saves doc at (collection, key), replacing any previous document.
	Put(ctx context.Context, collection, key string, doc any) error
	// List returns every document in a collection keyed by document key.
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)
}
