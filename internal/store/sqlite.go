package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// SQLiteStore is the single-host store. Its change feed only reaches
// subscribers in the same process.
type SQLiteStore struct {
	sqlStore
	hub *Hub
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlStore: sqlStore{db: db, dialect: DialectSQLite}, hub: NewHub()}
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, coupleID string, content json.RawMessage) error {
	if err := s.updateDocument(ctx, coupleID, content); err != nil {
		return err
	}
	s.hub.Publish(coupleID, append(json.RawMessage(nil), content...))
	return nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, coupleID string) (*Subscription, error) {
	return s.hub.Subscribe(ctx, coupleID), nil
}
