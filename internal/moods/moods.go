// Package moods records one mood per user per calendar day in the per-user
// mood table.
package moods

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/store"
)

var (
	ErrUnknownMood  = errors.New("unknown mood")
	ErrNoUser       = errors.New("no user selected")
	ErrMoodNotFound = errors.New("mood not found")
)

// RecentLimit bounds the mirror of recent rows.
const RecentLimit = 60

// Mood is one selectable mood.
type Mood struct {
	Key   string `json:"key"`
	Emoji string `json:"emoji"`
	Label string `json:"label"`
}

// Catalog lists the valid mood keys.
var Catalog = []Mood{
	{Key: "feliz", Emoji: "😊", Label: "Feliz"},
	{Key: "enamorado", Emoji: "😍", Label: "Enamorado"},
	{Key: "tranquilo", Emoji: "😌", Label: "Tranquilo"},
	{Key: "cansado", Emoji: "😴", Label: "Cansado"},
	{Key: "triste", Emoji: "😢", Label: "Triste"},
	{Key: "enojado", Emoji: "😠", Label: "Enojado"},
	{Key: "ansioso", Emoji: "😰", Label: "Ansioso"},
	{Key: "emocionado", Emoji: "🤩", Label: "Emocionado"},
}

func Valid(key string) bool {
	return slices.ContainsFunc(Catalog, func(m Mood) bool { return m.Key == key })
}

// Store is the per-user mood table.
type Store interface {
	ListRecentMoods(ctx context.Context, coupleID string, limit int) ([]store.MoodRow, error)
	CountMoods(ctx context.Context, coupleID string) (int, error)
	DeleteMoodsWhere(ctx context.Context, userID, date string) error
	InsertMood(ctx context.Context, row store.MoodRow) (store.MoodRow, error)
	DeleteMood(ctx context.Context, moodID string) error
}

type Module struct {
	store    Store
	coupleID string
	env      couple.Env

	hydrated bool
	recent   []store.MoodRow
	total    int
}

func New(moodStore Store, coupleID string, env couple.Env) *Module {
	return &Module{store: moodStore, coupleID: coupleID, env: env.WithDefaults(), recent: []store.MoodRow{}}
}

// Load reads the recent rows and the total count.
func (m *Module) Load(ctx context.Context) error {
	recent, err := m.store.ListRecentMoods(ctx, m.coupleID, RecentLimit)
	if err != nil {
		return fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	total, err := m.store.CountMoods(ctx, m.coupleID)
	if err != nil {
		return fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	m.recent = recent
	m.total = total
	m.hydrated = true
	return nil
}

func (m *Module) Hydrated() bool {
	return m.hydrated
}

// Recent returns up to limit rows, newest first.
func (m *Module) Recent(limit int) []store.MoodRow {
	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	return slices.Clone(m.recent[:limit])
}

// Total is the number of mood rows ever kept for the couple.
func (m *Module) Total() int {
	return m.total
}

// Today returns today's row per user id.
func (m *Module) Today() map[string]store.MoodRow {
	today := couple.Today(m.env.Now())
	out := map[string]store.MoodRow{}
	for _, row := range m.recent {
		if row.Fecha != today {
			continue
		}
		if _, seen := out[row.UserID]; !seen {
			out[row.UserID] = row
		}
	}
	return out
}

// Register replaces the actor's mood for today.
func (m *Module) Register(ctx context.Context, mood, note string) (store.MoodRow, error) {
	if !m.hydrated {
		return store.MoodRow{}, couple.ErrNotHydrated
	}
	mood = strings.TrimSpace(mood)
	if !Valid(mood) {
		return store.MoodRow{}, ErrUnknownMood
	}
	actor := m.env.Actor()
	if actor.ID == "" {
		return store.MoodRow{}, ErrNoUser
	}
	today := couple.Today(m.env.Now())

	if err := m.store.DeleteMoodsWhere(ctx, actor.ID, today); err != nil {
		return store.MoodRow{}, fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	// The old row is gone from the store even if the insert fails.
	removed := 0
	m.recent = slices.DeleteFunc(m.recent, func(row store.MoodRow) bool {
		if row.UserID == actor.ID && row.Fecha == today {
			removed++
			return true
		}
		return false
	})
	m.total -= removed

	row, err := m.store.InsertMood(ctx, store.MoodRow{
		CoupleID: m.coupleID,
		UserID:   actor.ID,
		Fecha:    today,
		Mood:     mood,
		Nota:     strings.TrimSpace(note),
	})
	if err != nil {
		return store.MoodRow{}, fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	m.recent = append([]store.MoodRow{row}, m.recent...)
	if len(m.recent) > RecentLimit {
		m.recent = m.recent[:RecentLimit]
	}
	m.total++
	return row, nil
}

func (m *Module) Delete(ctx context.Context, moodID string) error {
	if !m.hydrated {
		return couple.ErrNotHydrated
	}
	if err := m.store.DeleteMood(ctx, moodID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMoodNotFound
		}
		return fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	m.recent = slices.DeleteFunc(m.recent, func(row store.MoodRow) bool { return row.ID == moodID })
	if m.total > 0 {
		m.total--
	}
	return nil
}
