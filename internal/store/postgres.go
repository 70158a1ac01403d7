package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reconciliation-close-backend/internal/apperr"
)

// Document is one row of the Postgres document table.
type Document struct {
	Collection string         `gorm:"primaryKey;size:64"`
	Key        string         `gorm:"primaryKey;size:128"`
	Data       datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt  time.Time
}

// PostgresStore persists documents in a single jsonb-backed table.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string, out any) error {
	var doc Document
	err := s.db.WithContext(ctx).
		First(&doc, "collection = ? AND key = ?", collection, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(collection, key)
	}
	if err != nil {
		return apperr.Upstream("postgres get", err)
	}
	return json.Unmarshal(doc.Data, out)
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	row := Document{Collection: collection, Key: key, Data: datatypes.JSON(raw), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return apperr.Upstream("postgres put", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Find(&docs).Error
	if err != nil {
		return nil, apperr.Upstream("postgres list", err)
	}
	out := make(map[string]json.RawMessage, len(docs))
	for _, doc := range docs {
		out[doc.Key] = json.RawMessage(doc.Data)
	}
	return out, nil
}
