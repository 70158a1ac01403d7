package repository

import (
	"context"
	"encoding/json"
	"sort"

	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/store"
)

// AuditRepository is the append-only (before, after) ledger. Each event is its
// own document so appends never rewrite history.
type AuditRepository struct {
	store store.Store
}

func NewAuditRepository(s store.Store) *AuditRepository {
	return &AuditRepository{store: s}
}

func (r *AuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	return r.store.Put(ctx, store.CollectionAuditEvents, event.ID.String(), event)
}

// List returns events newest first, capped at limit (0 means all).
func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	docs, err := r.store.List(ctx, store.CollectionAuditEvents)
	if err != nil {
		return nil, err
	}
	events := make([]models.AuditEvent, 0, len(docs))
	for _, raw := range docs {
		var event models.AuditEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// AnnouncementRepository stores the operator event feed.
type AnnouncementRepository struct {
	store store.Store
}

func NewAnnouncementRepository(s store.Store) *AnnouncementRepository {
	return &AnnouncementRepository{store: s}
}

func (r *AnnouncementRepository) Append(ctx context.Context, item models.AnnouncementItem) error {
	return r.store.Put(ctx, store.CollectionAnnouncements, item.ID.String(), item)
}

func (r *AnnouncementRepository) List(ctx context.Context) ([]models.AnnouncementItem, error) {
	docs, err := r.store.List(ctx, store.CollectionAnnouncements)
	if err != nil {
		return nil, err
	}
	items := make([]models.AnnouncementItem, 0, len(docs))
	for _, raw := range docs {
		var item models.AnnouncementItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
