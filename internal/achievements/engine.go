// Package achievements evaluates unlock rules against aggregate metrics and
// persists the unlocked set and points of the couple.
package achievements

import "fmt"

// Kind distinguishes one-shot achievements from threshold ladders.
type Kind string

const (
	KindUnique  Kind = "unico"
	KindLeveled Kind = "nivel"
)

// Definition is a static achievement rule. Unique rules use Met; leveled
// rules use Value against the ascending Levels thresholds.
type Definition struct {
	ID     string
	Title  string
	Icon   string
	Points int
	Kind   Kind
	Levels []int

	Met   func(Metrics) bool
	Value func(Metrics) int
}

// Notification is the user-visible signal for one unlock.
type Notification struct {
	ID     string `json:"id"`
	Title  string `json:"titulo"`
	Icon   string `json:"icono"`
	Points int    `json:"puntos"`
	Level  int    `json:"nivel,omitempty"`
}

// Evaluation is the outcome of one pass that unlocked something.
type Evaluation struct {
	NewlyUnlocked []string
	PointsGained  int
	// Points is the balance after the gain.
	Points        int
	Notifications []Notification
}

// LevelID is the composite id of one level of a leveled achievement.
func LevelID(id string, level int) string {
	return fmt.Sprintf("%s_nivel%d", id, level)
}

// CurrentLevel counts the thresholds reached by value.
func CurrentLevel(levels []int, value int) int {
	count := 0
	for _, threshold := range levels {
		if threshold <= value {
			count++
		}
	}
	return count
}

// Evaluate returns the achievements that unlock for m given the already
// unlocked ids, or nil when nothing new unlocks. Definitions are walked in
// order and leveled ones back-fill every missing level in ascending order.
// Each level awards Points times the level index.
func Evaluate(defs []Definition, m Metrics, unlocked []string, points int, notify bool) *Evaluation {
	have := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		have[id] = struct{}{}
	}

	var result Evaluation
	grant := func(id string, gained int, note Notification) {
		have[id] = struct{}{}
		result.NewlyUnlocked = append(result.NewlyUnlocked, id)
		result.PointsGained += gained
		if notify {
			result.Notifications = append(result.Notifications, note)
		}
	}

	for _, def := range defs {
		switch def.Kind {
		case KindUnique:
			if def.Met == nil || !def.Met(m) {
				continue
			}
			if _, ok := have[def.ID]; ok {
				continue
			}
			grant(def.ID, def.Points, Notification{ID: def.ID, Title: def.Title, Icon: def.Icon, Points: def.Points})
		case KindLeveled:
			if def.Value == nil {
				continue
			}
			current := CurrentLevel(def.Levels, def.Value(m))
			for level := 1; level <= current; level++ {
				id := LevelID(def.ID, level)
				if _, ok := have[id]; ok {
					continue
				}
				gained := def.Points * level
				grant(id, gained, Notification{
					ID:     id,
					Title:  fmt.Sprintf("%s (Nivel %d)", def.Title, level),
					Icon:   def.Icon,
					Points: gained,
					Level:  level,
				})
			}
		}
	}

	if len(result.NewlyUnlocked) == 0 {
		return nil
	}
	result.Points = points + result.PointsGained
	return &result
}
