// Package notes owns the couple's shared notes.
package notes

import (
	"context"
	"errors"
	"slices"
	"strings"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/util"
)

var (
	ErrEmptyText    = errors.New("note text is required")
	ErrNoteNotFound = errors.New("note not found")
)

// DefaultCategory is used when a note is saved without one.
const DefaultCategory = "general"

type Module struct {
	guard couple.Guard
	env   couple.Env
	notes []couple.Note
}

func New(writer *couple.Writer, env couple.Env) *Module {
	return &Module{guard: couple.NewGuard(writer), env: env.WithDefaults(), notes: []couple.Note{}}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.notes = slices.Clone(doc.Notas)
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

// List returns the notes newest first.
func (m *Module) List() []couple.Note {
	out := slices.Clone(m.notes)
	slices.Reverse(out)
	return out
}

func (m *Module) ByCategory(category string) []couple.Note {
	out := make([]couple.Note, 0)
	for _, note := range m.List() {
		if note.Categoria == category {
			out = append(out, note)
		}
	}
	return out
}

func (m *Module) Add(ctx context.Context, text, category string) (couple.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return couple.Note{}, ErrEmptyText
	}
	note := couple.Note{
		ID:        util.NewID("nota"),
		Texto:     text,
		Categoria: normalizeCategory(category),
		Fecha:     couple.Timestamp(m.env.Now()),
		CreadoPor: m.env.Actor().Name,
	}
	if err := m.write(ctx, append(slices.Clone(m.notes), note)); err != nil {
		return couple.Note{}, err
	}
	return note, nil
}

func (m *Module) Update(ctx context.Context, noteID, text, category string) (couple.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return couple.Note{}, ErrEmptyText
	}
	next := slices.Clone(m.notes)
	idx := slices.IndexFunc(next, func(n couple.Note) bool { return n.ID == noteID })
	if idx < 0 {
		return couple.Note{}, ErrNoteNotFound
	}
	next[idx].Texto = text
	next[idx].Categoria = normalizeCategory(category)
	if err := m.write(ctx, next); err != nil {
		return couple.Note{}, err
	}
	return next[idx], nil
}

func (m *Module) Delete(ctx context.Context, noteID string) error {
	idx := slices.IndexFunc(m.notes, func(n couple.Note) bool { return n.ID == noteID })
	if idx < 0 {
		return ErrNoteNotFound
	}
	return m.write(ctx, slices.Delete(slices.Clone(m.notes), idx, idx+1))
}

func (m *Module) write(ctx context.Context, next []couple.Note) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldNotas: next}, nil
	})
	if err != nil {
		return err
	}
	m.notes = doc.Notas
	return nil
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}
