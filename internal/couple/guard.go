package couple

import (
	"context"
	"math/rand/v2"
	"time"
)

// Actor is the user acting on this device.
type Actor struct {
	ID   string
	Name string
}

// Env carries the per-device dependencies feature modules share.
type Env struct {
	Actor func() Actor
	Now   func() time.Time
	// IntN returns a uniform value in [0, n).
	IntN func(n int) int
}

// WithDefaults fills unset dependencies.
func (e Env) WithDefaults() Env {
	if e.Actor == nil {
		e.Actor = func() Actor { return Actor{} }
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.IntN == nil {
		e.IntN = rand.IntN
	}
	return e
}

// Guard holds a module's hydration flag in front of its writer. Writes
// issued before the first hydration fail without touching the store.
type Guard struct {
	writer   *Writer
	hydrated bool
}

func NewGuard(writer *Writer) Guard {
	return Guard{writer: writer}
}

func (g *Guard) MarkHydrated() {
	g.hydrated = true
}

func (g *Guard) Hydrated() bool {
	return g.hydrated
}

func (g *Guard) Update(ctx context.Context, fn MergeFunc) (Document, error) {
	if !g.hydrated {
		return Document{}, ErrNotHydrated
	}
	return g.writer.Update(ctx, fn)
}
