package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// NotifyChannel is the LISTEN/NOTIFY channel fired by the parejas trigger.
const NotifyChannel = "pareja_cambios"

type PostgresStore struct {
	sqlStore
	databaseURL string
	retryDelay  time.Duration
}

func NewPostgresStore(db *sql.DB, databaseURL string) *PostgresStore {
	return &PostgresStore{
		sqlStore:    sqlStore{db: db, dialect: DialectPostgres},
		databaseURL: databaseURL,
		retryDelay:  2 * time.Second,
	}
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, coupleID string, content json.RawMessage) error {
	return s.updateDocument(ctx, coupleID, content)
}

// Subscribe listens for document changes on a dedicated connection and
// pushes the full document after every notification for coupleID. Lost
// connections are re-established until the subscription is closed.
func (s *PostgresStore) Subscribe(ctx context.Context, coupleID string) (*Subscription, error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}
	return newSubscription(ctx, func(ctx context.Context, sub *Subscription) {
		defer func() {
			if conn != nil {
				_ = conn.Close(context.Background())
			}
		}()
		for {
			if conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.retryDelay):
				}
				reconnected, err := s.listen(ctx)
				if err != nil {
					continue
				}
				conn = reconnected
				// Changes may have been missed while disconnected.
				s.push(ctx, sub, coupleID)
			}

			notification, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				_ = conn.Close(context.Background())
				conn = nil
				continue
			}
			if notification.Payload != coupleID {
				continue
			}
			s.push(ctx, sub, coupleID)
		}
	}), nil
}

func (s *PostgresStore) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect change feed: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	return conn, nil
}

func (s *PostgresStore) push(ctx context.Context, sub *Subscription, coupleID string) {
	raw, err := s.GetDocument(ctx, coupleID)
	if err != nil {
		// A failed read is retried by the next notification.
		return
	}
	sub.deliver(ctx, raw)
}
