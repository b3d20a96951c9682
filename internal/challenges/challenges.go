// Package challenges owns the couple's single active challenge and its
// progress.
package challenges

import (
	"context"
	"errors"

	"nosotros/api/internal/couple"
)

var (
	ErrNoActiveChallenge      = errors.New("no active challenge")
	ErrNoChangesLeft          = errors.New("no quedan cambios de desafío")
	ErrAlreadyProgressedToday = errors.New("ya registraron progreso hoy")
	ErrChallengeCompleted     = errors.New("challenge already completed")
)

// MaxChanges caps how many times the active challenge may be swapped.
const MaxChanges = 3

// State is the challenge slice of the document.
type State struct {
	Challenge     *couple.Challenge `json:"desafioActual"`
	Progress      int               `json:"progresoDesafio"`
	LastProgress  *string           `json:"ultimaActualizacionDesafio"`
	Changes       int               `json:"intentosCambio"`
	Completed     int               `json:"desafiosCompletados"`
	ChangesLeft   int               `json:"cambiosRestantes"`
	AwaitingClear bool              `json:"completado"`
}

// ProgressResult reports a progress step.
type ProgressResult struct {
	Progress  int  `json:"progreso"`
	Meta      int  `json:"meta"`
	Completed bool `json:"completado"`
}

type Module struct {
	guard couple.Guard
	env   couple.Env

	current      *couple.Challenge
	progress     int
	lastProgress *string
	changes      int
	completed    int
}

func New(writer *couple.Writer, env couple.Env) *Module {
	return &Module{guard: couple.NewGuard(writer), env: env.WithDefaults()}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.apply(doc)
	m.guard.MarkHydrated()
}

func (m *Module) apply(doc couple.Document) {
	m.current = cloneChallenge(doc.DesafioActual)
	m.progress = doc.ProgresoDesafio
	m.lastProgress = cloneString(doc.UltimaActualizacionDesafio)
	m.changes = doc.IntentosCambio
	m.completed = doc.DesafiosCompletados
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

func (m *Module) State() State {
	left := MaxChanges - m.changes
	if left < 0 {
		left = 0
	}
	return State{
		Challenge:     cloneChallenge(m.current),
		Progress:      m.progress,
		LastProgress:  cloneString(m.lastProgress),
		Changes:       m.changes,
		Completed:     m.completed,
		ChangesLeft:   left,
		AwaitingClear: m.done(),
	}
}

// CompletedCount is the number of finished challenges.
func (m *Module) CompletedCount() int {
	return m.completed
}

// Assign draws a challenge when none is active. An active challenge is
// returned unchanged.
func (m *Module) Assign(ctx context.Context) (couple.Challenge, error) {
	if m.current != nil {
		return *m.current, nil
	}
	challenge := Catalog[m.env.IntN(len(Catalog))]
	err := m.write(ctx, func(couple.Document) map[string]any {
		return map[string]any{
			couple.FieldDesafioActual:              challenge,
			couple.FieldProgresoDesafio:            0,
			couple.FieldUltimaActualizacionDesafio: nil,
			couple.FieldIntentosCambio:             0,
		}
	})
	if err != nil {
		return couple.Challenge{}, err
	}
	return challenge, nil
}

// Change swaps the active challenge for a different random one.
func (m *Module) Change(ctx context.Context) (couple.Challenge, error) {
	if !m.guard.Hydrated() {
		return couple.Challenge{}, couple.ErrNotHydrated
	}
	if m.current == nil {
		return couple.Challenge{}, ErrNoActiveChallenge
	}
	if m.changes >= MaxChanges {
		return couple.Challenge{}, ErrNoChangesLeft
	}
	currentID := m.current.ID
	candidates := make([]couple.Challenge, 0, len(Catalog))
	for _, challenge := range Catalog {
		if challenge.ID != currentID {
			candidates = append(candidates, challenge)
		}
	}
	challenge := candidates[m.env.IntN(len(candidates))]
	changes := m.changes + 1
	err := m.write(ctx, func(couple.Document) map[string]any {
		return map[string]any{
			couple.FieldDesafioActual:              challenge,
			couple.FieldProgresoDesafio:            0,
			couple.FieldUltimaActualizacionDesafio: nil,
			couple.FieldIntentosCambio:             changes,
		}
	})
	if err != nil {
		return couple.Challenge{}, err
	}
	return challenge, nil
}

// Progress adds one step. Challenges with a goal above one accept at most
// one step per calendar day. Reaching the goal counts the challenge as
// completed; ClearCompleted removes it afterwards.
func (m *Module) Progress(ctx context.Context) (ProgressResult, error) {
	if !m.guard.Hydrated() {
		return ProgressResult{}, couple.ErrNotHydrated
	}
	if m.current == nil {
		return ProgressResult{}, ErrNoActiveChallenge
	}
	if m.done() {
		return ProgressResult{}, ErrChallengeCompleted
	}
	today := couple.Today(m.env.Now())
	meta := m.current.Meta
	if meta > 1 && m.lastProgress != nil && *m.lastProgress == today {
		return ProgressResult{}, ErrAlreadyProgressedToday
	}
	progress := m.progress + 1
	completed := progress >= meta
	err := m.write(ctx, func(fresh couple.Document) map[string]any {
		changes := map[string]any{
			couple.FieldProgresoDesafio:            progress,
			couple.FieldUltimaActualizacionDesafio: today,
		}
		if completed {
			changes[couple.FieldDesafiosCompletados] = fresh.DesafiosCompletados + 1
		}
		return changes
	})
	if err != nil {
		return ProgressResult{}, err
	}
	return ProgressResult{Progress: progress, Meta: meta, Completed: completed}, nil
}

// ClearCompleted removes a completed challenge and resets its counters.
// It reports whether anything was cleared.
func (m *Module) ClearCompleted(ctx context.Context) (bool, error) {
	if !m.done() {
		return false, nil
	}
	err := m.write(ctx, func(couple.Document) map[string]any {
		return map[string]any{
			couple.FieldDesafioActual:              nil,
			couple.FieldProgresoDesafio:            0,
			couple.FieldUltimaActualizacionDesafio: nil,
			couple.FieldIntentosCambio:             0,
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Module) done() bool {
	return m.current != nil && m.progress >= m.current.Meta
}

func (m *Module) write(ctx context.Context, fields func(fresh couple.Document) map[string]any) error {
	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		return fields(fresh), nil
	})
	if err != nil {
		return err
	}
	m.apply(doc)
	return nil
}

func cloneChallenge(challenge *couple.Challenge) *couple.Challenge {
	if challenge == nil {
		return nil
	}
	out := *challenge
	return &out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
