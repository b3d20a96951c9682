// Package reasons owns the "why I love you" entries and the reason of the day.
package reasons

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/util"
)

var (
	// ErrNotAuthor matches every AuthorError.
	ErrNotAuthor      = errors.New("solo el autor puede modificar esta razón")
	ErrEmptyText      = errors.New("reason text is required")
	ErrReasonNotFound = errors.New("reason not found")
	ErrNoReasons      = errors.New("no reasons yet")
	ErrNoUser         = errors.New("no user selected")
)

// AuthorError rejects a change to a reason the actor did not write.
type AuthorError struct {
	Action string
}

func (e *AuthorError) Error() string {
	return fmt.Sprintf("Solo el autor puede %s esta razón", e.Action)
}

func (e *AuthorError) Is(target error) bool {
	return target == ErrNotAuthor
}

type Module struct {
	guard    couple.Guard
	env      couple.Env
	reasons  []couple.Reason
	ofTheDay *couple.Reason
}

func New(writer *couple.Writer, env couple.Env) *Module {
	return &Module{guard: couple.NewGuard(writer), env: env.WithDefaults(), reasons: []couple.Reason{}}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.reasons = slices.Clone(doc.Razones)
	m.ofTheDay = cloneReason(doc.RazonDelDia)
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

func (m *Module) List() []couple.Reason {
	return slices.Clone(m.reasons)
}

// OfTheDay returns the highlighted reason, if any.
func (m *Module) OfTheDay() (couple.Reason, bool) {
	if m.ofTheDay == nil {
		return couple.Reason{}, false
	}
	return *m.ofTheDay, true
}

// Add appends a reason by the actor. The first reason becomes the reason
// of the day.
func (m *Module) Add(ctx context.Context, text string) (couple.Reason, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return couple.Reason{}, ErrEmptyText
	}
	actor := m.env.Actor()
	if actor.ID == "" {
		return couple.Reason{}, ErrNoUser
	}
	reason := couple.Reason{
		ID:          util.NewID("razon"),
		Texto:       text,
		AutorID:     actor.ID,
		AutorNombre: actor.Name,
		Fecha:       couple.Timestamp(m.env.Now()),
	}
	next := append(slices.Clone(m.reasons), reason)
	ofTheDay := cloneReason(m.ofTheDay)
	if ofTheDay == nil {
		ofTheDay = &reason
	}
	if err := m.write(ctx, next, ofTheDay); err != nil {
		return couple.Reason{}, err
	}
	return reason, nil
}

func (m *Module) Edit(ctx context.Context, reasonID, text string) (couple.Reason, error) {
	idx, err := m.authored(reasonID, "editar")
	if err != nil {
		return couple.Reason{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return couple.Reason{}, ErrEmptyText
	}
	next := slices.Clone(m.reasons)
	next[idx].Texto = text
	ofTheDay := cloneReason(m.ofTheDay)
	if ofTheDay != nil && ofTheDay.ID == reasonID {
		ofTheDay = &next[idx]
	}
	if err := m.write(ctx, next, ofTheDay); err != nil {
		return couple.Reason{}, err
	}
	return next[idx], nil
}

// Delete removes the actor's reason. Deleting the reason of the day picks a
// new one uniformly from the remainder.
func (m *Module) Delete(ctx context.Context, reasonID string) error {
	idx, err := m.authored(reasonID, "eliminar")
	if err != nil {
		return err
	}
	next := slices.Delete(slices.Clone(m.reasons), idx, idx+1)
	ofTheDay := cloneReason(m.ofTheDay)
	if ofTheDay != nil && ofTheDay.ID == reasonID {
		ofTheDay = nil
		if len(next) > 0 {
			pick := next[m.env.IntN(len(next))]
			ofTheDay = &pick
		}
	}
	return m.write(ctx, next, ofTheDay)
}

// Reroll picks a new reason of the day, different from the current one
// whenever more than one reason exists.
func (m *Module) Reroll(ctx context.Context) (couple.Reason, error) {
	if len(m.reasons) == 0 {
		return couple.Reason{}, ErrNoReasons
	}
	candidates := m.reasons
	if m.ofTheDay != nil && len(m.reasons) > 1 {
		current := m.ofTheDay.ID
		candidates = slices.DeleteFunc(slices.Clone(m.reasons), func(r couple.Reason) bool { return r.ID == current })
	}
	pick := candidates[m.env.IntN(len(candidates))]
	if err := m.write(ctx, slices.Clone(m.reasons), &pick); err != nil {
		return couple.Reason{}, err
	}
	return pick, nil
}

// authored checks ownership before any store call.
func (m *Module) authored(reasonID, action string) (int, error) {
	idx := slices.IndexFunc(m.reasons, func(r couple.Reason) bool { return r.ID == reasonID })
	if idx < 0 {
		return -1, ErrReasonNotFound
	}
	actorID := m.env.Actor().ID
	if actorID == "" {
		return -1, ErrNoUser
	}
	if m.reasons[idx].AutorID != actorID {
		return -1, &AuthorError{Action: action}
	}
	return idx, nil
}

func (m *Module) write(ctx context.Context, next []couple.Reason, ofTheDay *couple.Reason) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{
			couple.FieldRazones:     next,
			couple.FieldRazonDelDia: ofTheDay,
		}, nil
	})
	if err != nil {
		return err
	}
	m.reasons = doc.Razones
	m.ofTheDay = cloneReason(doc.RazonDelDia)
	return nil
}

func cloneReason(reason *couple.Reason) *couple.Reason {
	if reason == nil {
		return nil
	}
	out := *reason
	return &out
}
