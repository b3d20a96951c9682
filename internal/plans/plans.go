// Package plans owns the plan pool, the dated calendar of plan occurrences
// and the roulette that draws an available plan.
package plans

import (
	"context"
	"errors"
	"slices"
	"strings"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/util"
)

var (
	ErrNoPlansAvailable = errors.New("no hay planes disponibles")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrEntryNotFound    = errors.New("plan is not scheduled on that date")
	ErrAlreadyScheduled = errors.New("plan already scheduled on that date")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidScore     = errors.New("score must be between 0 and 10")
	ErrEmptyTitle       = errors.New("plan title is required")
	ErrPhotoNotFound    = errors.New("photo not found")
)

// MaxScore is the highest review score of a dated entry.
const MaxScore = 10

// Input is the editable part of a Plan.
type Input struct {
	Titulo    string `json:"titulo"`
	Precio    string `json:"precio"`
	Duracion  string `json:"duracion"`
	Categoria string `json:"categoria"`
}

type Module struct {
	guard couple.Guard
	env   couple.Env

	plans    []couple.Plan
	calendar map[string][]couple.DatedPlanEntry

	current  *couple.Plan
	attempts int
}

func New(writer *couple.Writer, env couple.Env) *Module {
	return &Module{
		guard:    couple.NewGuard(writer),
		env:      env.WithDefaults(),
		plans:    []couple.Plan{},
		calendar: map[string][]couple.DatedPlanEntry{},
	}
}

// Hydrate replaces the mirror with the document's plans and calendar.
func (m *Module) Hydrate(doc couple.Document) {
	m.plans = slices.Clone(doc.Planes)
	m.calendar = couple.CloneCalendar(doc.PlanesPorDia)
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

func (m *Module) Plans() []couple.Plan {
	return slices.Clone(m.plans)
}

func (m *Module) Calendar() map[string][]couple.DatedPlanEntry {
	return couple.CloneCalendar(m.calendar)
}

func (m *Module) EntriesOn(date string) []couple.DatedPlanEntry {
	return couple.CloneEntries(m.calendar[date])
}

func (m *Module) Add(ctx context.Context, in Input) (couple.Plan, error) {
	in = trimInput(in)
	if in.Titulo == "" {
		return couple.Plan{}, ErrEmptyTitle
	}
	plan := couple.Plan{
		ID:        util.NewID("plan"),
		Titulo:    in.Titulo,
		Precio:    in.Precio,
		Duracion:  in.Duracion,
		Categoria: in.Categoria,
		CreadoPor: m.env.Actor().Name,
		CreadoEn:  couple.Timestamp(m.env.Now()),
	}
	next := append(slices.Clone(m.plans), plan)
	if err := m.writePlans(ctx, next); err != nil {
		return couple.Plan{}, err
	}
	return plan, nil
}

func (m *Module) Update(ctx context.Context, planID string, in Input) (couple.Plan, error) {
	in = trimInput(in)
	if in.Titulo == "" {
		return couple.Plan{}, ErrEmptyTitle
	}
	next := slices.Clone(m.plans)
	idx := indexOf(next, planID)
	if idx < 0 {
		return couple.Plan{}, ErrPlanNotFound
	}
	next[idx].Titulo = in.Titulo
	next[idx].Precio = in.Precio
	next[idx].Duracion = in.Duracion
	next[idx].Categoria = in.Categoria
	if err := m.writePlans(ctx, next); err != nil {
		return couple.Plan{}, err
	}
	return next[idx], nil
}

// Delete removes the plan and every dated entry referencing it.
func (m *Module) Delete(ctx context.Context, planID string) error {
	idx := indexOf(m.plans, planID)
	if idx < 0 {
		return ErrPlanNotFound
	}
	next := slices.Delete(slices.Clone(m.plans), idx, idx+1)
	calendar := couple.CloneCalendar(m.calendar)
	for date, entries := range calendar {
		calendar[date] = slices.DeleteFunc(entries, func(e couple.DatedPlanEntry) bool {
			return e.PlanID == planID
		})
	}
	pruneEmpty(calendar)
	return m.write(ctx, next, calendar)
}

func (m *Module) SetCompleted(ctx context.Context, planID string, completed bool) (couple.Plan, error) {
	next := slices.Clone(m.plans)
	idx := indexOf(next, planID)
	if idx < 0 {
		return couple.Plan{}, ErrPlanNotFound
	}
	next[idx].Completado = completed
	if err := m.writePlans(ctx, next); err != nil {
		return couple.Plan{}, err
	}
	return next[idx], nil
}

// Schedule adds an occurrence of the plan on date.
func (m *Module) Schedule(ctx context.Context, planID, date string) (couple.DatedPlanEntry, error) {
	if !couple.ValidDate(date) {
		return couple.DatedPlanEntry{}, ErrInvalidDate
	}
	if indexOf(m.plans, planID) < 0 {
		return couple.DatedPlanEntry{}, ErrPlanNotFound
	}
	if entryIndex(m.calendar[date], planID) >= 0 {
		return couple.DatedPlanEntry{}, ErrAlreadyScheduled
	}
	entry := couple.DatedPlanEntry{PlanID: planID, Fotos: []string{}}
	calendar := couple.CloneCalendar(m.calendar)
	calendar[date] = append(calendar[date], entry)
	if err := m.writeCalendar(ctx, calendar); err != nil {
		return couple.DatedPlanEntry{}, err
	}
	return entry, nil
}

func (m *Module) Unschedule(ctx context.Context, planID, date string) error {
	calendar := couple.CloneCalendar(m.calendar)
	idx := entryIndex(calendar[date], planID)
	if idx < 0 {
		return ErrEntryNotFound
	}
	calendar[date] = slices.Delete(calendar[date], idx, idx+1)
	pruneEmpty(calendar)
	return m.writeCalendar(ctx, calendar)
}

func (m *Module) CompleteEntry(ctx context.Context, planID, date string, completed bool) (couple.DatedPlanEntry, error) {
	return m.editEntry(ctx, planID, date, func(entry *couple.DatedPlanEntry) error {
		entry.Completado = completed
		return nil
	})
}

// Review stores the opinion and score of a dated entry. A nil score clears it.
func (m *Module) Review(ctx context.Context, planID, date, opinion string, score *int) (couple.DatedPlanEntry, error) {
	if score != nil && (*score < 0 || *score > MaxScore) {
		return couple.DatedPlanEntry{}, ErrInvalidScore
	}
	return m.editEntry(ctx, planID, date, func(entry *couple.DatedPlanEntry) error {
		entry.Opinion = strings.TrimSpace(opinion)
		if score == nil {
			entry.Puntuacion = nil
			return nil
		}
		value := *score
		entry.Puntuacion = &value
		return nil
	})
}

func (m *Module) AddPhoto(ctx context.Context, planID, date, url string) (couple.DatedPlanEntry, error) {
	return m.editEntry(ctx, planID, date, func(entry *couple.DatedPlanEntry) error {
		entry.Fotos = append(entry.Fotos, url)
		return nil
	})
}

func (m *Module) RemovePhoto(ctx context.Context, planID, date, url string) (couple.DatedPlanEntry, error) {
	return m.editEntry(ctx, planID, date, func(entry *couple.DatedPlanEntry) error {
		idx := slices.Index(entry.Fotos, url)
		if idx < 0 {
			return ErrPhotoNotFound
		}
		entry.Fotos = slices.Delete(entry.Fotos, idx, idx+1)
		return nil
	})
}

func (m *Module) editEntry(ctx context.Context, planID, date string, edit func(*couple.DatedPlanEntry) error) (couple.DatedPlanEntry, error) {
	calendar := couple.CloneCalendar(m.calendar)
	idx := entryIndex(calendar[date], planID)
	if idx < 0 {
		return couple.DatedPlanEntry{}, ErrEntryNotFound
	}
	entry := &calendar[date][idx]
	if err := edit(entry); err != nil {
		return couple.DatedPlanEntry{}, err
	}
	if err := m.writeCalendar(ctx, calendar); err != nil {
		return couple.DatedPlanEntry{}, err
	}
	return couple.CloneEntries([]couple.DatedPlanEntry{*entry})[0], nil
}

func (m *Module) writePlans(ctx context.Context, next []couple.Plan) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldPlanes: next}, nil
	})
	if err != nil {
		return err
	}
	m.plans = doc.Planes
	return nil
}

func (m *Module) writeCalendar(ctx context.Context, calendar map[string][]couple.DatedPlanEntry) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldPlanesPorDia: calendar}, nil
	})
	if err != nil {
		return err
	}
	m.calendar = doc.PlanesPorDia
	return nil
}

func (m *Module) write(ctx context.Context, next []couple.Plan, calendar map[string][]couple.DatedPlanEntry) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{
			couple.FieldPlanes:       next,
			couple.FieldPlanesPorDia: calendar,
		}, nil
	})
	if err != nil {
		return err
	}
	m.plans = doc.Planes
	m.calendar = doc.PlanesPorDia
	return nil
}

func trimInput(in Input) Input {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.Precio = strings.TrimSpace(in.Precio)
	in.Duracion = strings.TrimSpace(in.Duracion)
	in.Categoria = strings.TrimSpace(in.Categoria)
	return in
}

func indexOf(plans []couple.Plan, planID string) int {
	return slices.IndexFunc(plans, func(p couple.Plan) bool { return p.ID == planID })
}

func entryIndex(entries []couple.DatedPlanEntry, planID string) int {
	return slices.IndexFunc(entries, func(e couple.DatedPlanEntry) bool { return e.PlanID == planID })
}

func pruneEmpty(calendar map[string][]couple.DatedPlanEntry) {
	for date, entries := range calendar {
		if len(entries) == 0 {
			delete(calendar, date)
		}
	}
}
