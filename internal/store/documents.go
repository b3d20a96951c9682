package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nosotros/api/internal/util"
)

// sqlStore holds the queries shared by the Postgres and SQLite stores.
type sqlStore struct {
	db      *sql.DB
	dialect Dialect
}

func (s *sqlStore) q(query string) string {
	return rebind(s.dialect, query)
}

func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Dialect() Dialect {
	return s.dialect
}

func (s *sqlStore) Migrate(ctx context.Context) error {
	return ApplyMigrations(ctx, s.db, s.dialect)
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) GetDocument(ctx context.Context, coupleID string) (json.RawMessage, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT contenido FROM parejas WHERE id=$1`), coupleID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get couple document: %w", err)
	}
	return json.RawMessage(content), nil
}

func (s *sqlStore) InsertDocument(ctx context.Context, coupleID string, content json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO parejas (id, contenido)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`), coupleID, string(content))
	if err != nil {
		return fmt.Errorf("insert couple document: %w", err)
	}
	return nil
}

func (s *sqlStore) updateDocument(ctx context.Context, coupleID string, content json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE parejas SET contenido=$2, updated_at=CURRENT_TIMESTAMP
		WHERE id=$1
	`), coupleID, string(content))
	if err != nil {
		return fmt.Errorf("update couple document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update couple document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ListUsers(ctx context.Context, coupleID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, pareja_id, nombre, avatar_url, usuario_numero
		FROM usuarios
		WHERE pareja_id=$1
		ORDER BY usuario_numero ASC
	`), coupleID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, 2)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.CoupleID, &user.Nombre, &user.AvatarURL, &user.UsuarioNumero); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// InsertUsers inserts all users in one transaction. A unique violation
// (the partner device inserted first) rolls back and returns ErrConflict.
func (s *sqlStore) InsertUsers(ctx context.Context, users []User) ([]User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert users: %w", err)
	}

	inserted := make([]User, 0, len(users))
	for _, user := range users {
		if user.ID == "" {
			user.ID = util.NewID("usr")
		}
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO usuarios (id, pareja_id, nombre, avatar_url, usuario_numero)
			VALUES ($1, $2, $3, $4, $5)
		`), user.ID, user.CoupleID, user.Nombre, user.AvatarURL, user.UsuarioNumero)
		if err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("insert user %d: %w", user.UsuarioNumero, ErrConflict)
			}
			return nil, fmt.Errorf("insert user %d: %w", user.UsuarioNumero, err)
		}
		inserted = append(inserted, user)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("commit users: %w", ErrConflict)
		}
		return nil, fmt.Errorf("commit users: %w", err)
	}
	return inserted, nil
}

func (s *sqlStore) UpdateUser(ctx context.Context, userID string, fields UserUpdate) error {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE usuarios
		SET nombre=COALESCE($2, nombre), avatar_url=COALESCE($3, avatar_url)
		WHERE id=$1
	`), userID, fields.Nombre, fields.AvatarURL)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const moodTimeLayout = "2006-01-02T15:04:05.000000Z"

func (s *sqlStore) ListRecentMoods(ctx context.Context, coupleID string, limit int) ([]MoodRow, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, pareja_id, usuario_id, fecha, mood, nota, created_at
		FROM moods
		WHERE pareja_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`), coupleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	defer rows.Close()

	items := make([]MoodRow, 0)
	for rows.Next() {
		var row MoodRow
		if err := rows.Scan(&row.ID, &row.CoupleID, &row.UserID, &row.Fecha, &row.Mood, &row.Nota, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moods: %w", err)
	}
	return items, nil
}

func (s *sqlStore) CountMoods(ctx context.Context, coupleID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM moods WHERE pareja_id=$1`), coupleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count moods: %w", err)
	}
	return count, nil
}

// DeleteMoodsWhere removes the user's rows for one date.
func (s *sqlStore) DeleteMoodsWhere(ctx context.Context, userID, date string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM moods WHERE usuario_id=$1 AND fecha=$2`), userID, date); err != nil {
		return fmt.Errorf("delete moods: %w", err)
	}
	return nil
}

func (s *sqlStore) InsertMood(ctx context.Context, row MoodRow) (MoodRow, error) {
	if row.ID == "" {
		row.ID = util.NewID("mood")
	}
	if row.CreatedAt == "" {
		row.CreatedAt = time.Now().UTC().Format(moodTimeLayout)
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO moods (id, pareja_id, usuario_id, fecha, mood, nota, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), row.ID, row.CoupleID, row.UserID, row.Fecha, row.Mood, row.Nota, row.CreatedAt)
	if err != nil {
		return MoodRow{}, fmt.Errorf("insert mood: %w", err)
	}
	return row, nil
}

func (s *sqlStore) DeleteMood(ctx context.Context, moodID string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM moods WHERE id=$1`), moodID)
	if err != nil {
		return fmt.Errorf("delete mood: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete mood: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
