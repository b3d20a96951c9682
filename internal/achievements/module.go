package achievements

import (
	"context"
	"slices"

	"nosotros/api/internal/couple"
)

// Module mirrors the unlocked set and points of the couple.
type Module struct {
	guard    couple.Guard
	defs     []Definition
	unlocked []string
	points   int
}

// New builds the module over defs, or Catalog when defs is nil.
func New(writer *couple.Writer, defs []Definition) *Module {
	if defs == nil {
		defs = Catalog
	}
	return &Module{guard: couple.NewGuard(writer), defs: defs, unlocked: []string{}}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.unlocked = slices.Clone(doc.LogrosDesbloqueados)
	m.points = doc.Puntos
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

func (m *Module) Unlocked() []string {
	return slices.Clone(m.unlocked)
}

func (m *Module) Points() int {
	return m.points
}

// ObservePoints mirrors a points change committed by another module.
func (m *Module) ObservePoints(points int) {
	m.points = points
}

// Apply evaluates metrics against the persisted unlocked set and points and
// writes any unlocks in one merge. The mirror only advances after the write
// succeeds, so a retry re-evaluates from stored state. It returns nil when
// nothing unlocked.
func (m *Module) Apply(ctx context.Context, metrics Metrics, notify bool) (*Evaluation, error) {
	if !m.guard.Hydrated() {
		return nil, couple.ErrNotHydrated
	}
	// The stored set is a superset of the mirror.
	if Evaluate(m.defs, metrics, m.unlocked, m.points, false) == nil {
		return nil, nil
	}

	var result *Evaluation
	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		result = Evaluate(m.defs, metrics, fresh.LogrosDesbloqueados, fresh.Puntos, notify)
		if result == nil {
			return nil, nil
		}
		return map[string]any{
			couple.FieldLogrosDesbloqueados: append(slices.Clone(fresh.LogrosDesbloqueados), result.NewlyUnlocked...),
			couple.FieldPuntos:              result.Points,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	m.unlocked = slices.Clone(doc.LogrosDesbloqueados)
	m.points = doc.Puntos
	return result, nil
}

// Progress is the display state of one definition.
type Progress struct {
	ID       string `json:"id"`
	Title    string `json:"titulo"`
	Icon     string `json:"icono"`
	Kind     Kind   `json:"tipo"`
	Points   int    `json:"puntos"`
	Unlocked bool   `json:"desbloqueado"`
	Level    int    `json:"nivel,omitempty"`
	MaxLevel int    `json:"nivelMaximo,omitempty"`
	Value    int    `json:"valor,omitempty"`
	Next     int    `json:"siguiente,omitempty"`
}

// Progress lists every definition with its unlocked state and, for leveled
// ones, the highest unlocked level and the next threshold.
func (m *Module) Progress(metrics Metrics) []Progress {
	have := make(map[string]bool, len(m.unlocked))
	for _, id := range m.unlocked {
		have[id] = true
	}
	out := make([]Progress, 0, len(m.defs))
	for _, def := range m.defs {
		item := Progress{ID: def.ID, Title: def.Title, Icon: def.Icon, Kind: def.Kind, Points: def.Points}
		switch def.Kind {
		case KindUnique:
			item.Unlocked = have[def.ID]
		case KindLeveled:
			item.MaxLevel = len(def.Levels)
			if def.Value != nil {
				item.Value = def.Value(metrics)
			}
			for level := 1; level <= len(def.Levels); level++ {
				if have[LevelID(def.ID, level)] {
					item.Level = level
				}
			}
			item.Unlocked = item.Level > 0
			if item.Level < len(def.Levels) {
				item.Next = def.Levels[item.Level]
			}
		}
		out = append(out, item)
	}
	return out
}
