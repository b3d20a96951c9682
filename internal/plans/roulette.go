package plans

import (
	"nosotros/api/internal/couple"
)

// Available returns the plans the roulette may draw: not completed and
// without a pending dated entry on any date.
func (m *Module) Available() []couple.Plan {
	pending := map[string]bool{}
	for _, entries := range m.calendar {
		for _, entry := range entries {
			if !entry.Completado {
				pending[entry.PlanID] = true
			}
		}
	}
	out := make([]couple.Plan, 0, len(m.plans))
	for _, plan := range m.plans {
		if plan.Completado || pending[plan.ID] {
			continue
		}
		out = append(out, plan)
	}
	return out
}

// Pick draws an available plan uniformly, records it as the current plan
// and counts the attempt. It never touches the store.
func (m *Module) Pick() (couple.Plan, error) {
	available := m.Available()
	if len(available) == 0 {
		return couple.Plan{}, ErrNoPlansAvailable
	}
	plan := available[m.env.IntN(len(available))]
	m.current = &plan
	m.attempts++
	return plan, nil
}

// Current returns the last picked plan, if any.
func (m *Module) Current() (couple.Plan, bool) {
	if m.current == nil {
		return couple.Plan{}, false
	}
	return *m.current, true
}

func (m *Module) Attempts() int {
	return m.attempts
}

func (m *Module) ResetRoulette() {
	m.current = nil
	m.attempts = 0
}
