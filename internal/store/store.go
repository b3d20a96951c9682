package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the remote persistence used by one device: the shared couple
// documents, the users table and the per-user moods table.
type Store interface {
	GetDocument(ctx context.Context, coupleID string) (json.RawMessage, error)
	InsertDocument(ctx context.Context, coupleID string, content json.RawMessage) error
	UpdateDocument(ctx context.Context, coupleID string, content json.RawMessage) error
	Subscribe(ctx context.Context, coupleID string) (*Subscription, error)

	ListUsers(ctx context.Context, coupleID string) ([]User, error)
	InsertUsers(ctx context.Context, users []User) ([]User, error)
	UpdateUser(ctx context.Context, userID string, fields UserUpdate) error

	ListRecentMoods(ctx context.Context, coupleID string, limit int) ([]MoodRow, error)
	CountMoods(ctx context.Context, coupleID string) (int, error)
	DeleteMoodsWhere(ctx context.Context, userID, date string) error
	InsertMood(ctx context.Context, row MoodRow) (MoodRow, error)
	DeleteMood(ctx context.Context, moodID string) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Options selects and locates the store engine.
type Options struct {
	Engine      string
	DatabaseURL string
	SQLitePath  string
}

// OpenStore opens the configured engine. Migrations are not applied.
func OpenStore(ctx context.Context, opts Options) (Store, error) {
	switch Dialect(opts.Engine) {
	case DialectPostgres, "":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("open store: DATABASE_URL is required for the postgres engine")
		}
		db, err := Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(db, opts.DatabaseURL), nil
	case DialectSQLite:
		db, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	default:
		return nil, fmt.Errorf("open store: unknown engine %q", opts.Engine)
	}
}
