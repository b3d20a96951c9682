package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	s := NewPostgresStore(db, dsn)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresChangeFeed(t *testing.T) {
	s := openTestPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.InsertDocument(ctx, "ABC123", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("InsertDocument() error = %v", err)
	}
	sub, err := s.Subscribe(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	if err := s.UpdateDocument(ctx, "ABC123", json.RawMessage(`{"puntos": 5}`)); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	select {
	case raw := <-sub.Snapshots():
		var doc map[string]int
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if doc["puntos"] != 5 {
			t.Fatalf("snapshot = %s", raw)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for notification")
	}
}

func TestPostgresInsertUsersConflict(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	if err := s.InsertDocument(ctx, "ABC123", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("InsertDocument() error = %v", err)
	}
	pair := []User{
		{CoupleID: "ABC123", Nombre: "Usuario 1", UsuarioNumero: 1},
		{CoupleID: "ABC123", Nombre: "Usuario 2", UsuarioNumero: 2},
	}
	if _, err := s.InsertUsers(ctx, pair); err != nil {
		t.Fatalf("InsertUsers() error = %v", err)
	}
	if _, err := s.InsertUsers(ctx, pair); !errors.Is(err, ErrConflict) {
		t.Fatalf("InsertUsers(duplicate) error = %v, want ErrConflict", err)
	}
}
