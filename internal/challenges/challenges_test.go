package challenges

import (
	"context"
	"errors"
	"testing"
	"time"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/couple/coupletest"
)

type harness struct {
	module *Module
	mem    *coupletest.MemoryStore
	now    time.Time
	pick   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mem: coupletest.NewMemoryStore(), now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
	h.mem.Seed(t, "ABC123", couple.NewDocument())
	h.module = New(couple.NewWriter(h.mem, "ABC123"), couple.Env{
		Now:  func() time.Time { return h.now },
		IntN: func(n int) int { return h.pick % n },
	})
	h.module.Hydrate(couple.NewDocument())
	return h
}

func (h *harness) assign(t *testing.T, id string) couple.Challenge {
	t.Helper()
	for i, challenge := range Catalog {
		if challenge.ID == id {
			h.pick = i
		}
	}
	challenge, err := h.module.Assign(context.Background())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if challenge.ID != id {
		t.Fatalf("Assign() = %q, want %q", challenge.ID, id)
	}
	return challenge
}

func TestAssignKeepsActiveChallenge(t *testing.T) {
	h := newHarness(t)
	first := h.assign(t, "sin_pantallas")
	h.pick = 0
	again, err := h.module.Assign(context.Background())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("Assign() replaced the active challenge with %q", again.ID)
	}
}

func TestChangeIsCapped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.assign(t, "sin_pantallas")

	previous := "sin_pantallas"
	for i := 0; i < MaxChanges; i++ {
		h.pick = i
		next, err := h.module.Change(ctx)
		if err != nil {
			t.Fatalf("Change() #%d error = %v", i+1, err)
		}
		if next.ID == previous {
			t.Fatalf("Change() returned the same challenge %q", next.ID)
		}
		previous = next.ID
	}
	if _, err := h.module.Change(ctx); !errors.Is(err, ErrNoChangesLeft) {
		t.Fatalf("Change() past cap error = %v, want ErrNoChangesLeft", err)
	}
	if got := h.mem.Document(t, "ABC123").IntentosCambio; got != MaxChanges {
		t.Fatalf("stored intentosCambio = %d", got)
	}
	if h.module.State().ChangesLeft != 0 {
		t.Fatalf("ChangesLeft = %d", h.module.State().ChangesLeft)
	}
}

func TestProgressOncePerDayUntilCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	challenge := h.assign(t, "notas_sorpresa")

	for day := 0; day < challenge.Meta; day++ {
		result, err := h.module.Progress(ctx)
		if err != nil {
			t.Fatalf("Progress() day %d error = %v", day, err)
		}
		if _, err := h.module.Progress(ctx); day < challenge.Meta-1 && !errors.Is(err, ErrAlreadyProgressedToday) {
			t.Fatalf("second Progress() same day error = %v", err)
		}
		if result.Completed != (day == challenge.Meta-1) {
			t.Fatalf("day %d Completed = %v", day, result.Completed)
		}
		h.now = h.now.Add(24 * time.Hour)
	}

	stored := h.mem.Document(t, "ABC123")
	if stored.DesafiosCompletados != 1 || stored.ProgresoDesafio != challenge.Meta {
		t.Fatalf("stored challenge state = %d completed, %d progress", stored.DesafiosCompletados, stored.ProgresoDesafio)
	}
	if _, err := h.module.Progress(ctx); !errors.Is(err, ErrChallengeCompleted) {
		t.Fatalf("Progress() after completion error = %v", err)
	}

	cleared, err := h.module.ClearCompleted(ctx)
	if err != nil || !cleared {
		t.Fatalf("ClearCompleted() = %v, %v", cleared, err)
	}
	stored = h.mem.Document(t, "ABC123")
	if stored.DesafioActual != nil || stored.ProgresoDesafio != 0 || stored.IntentosCambio != 0 || stored.DesafiosCompletados != 1 {
		t.Fatalf("stored after clear = %+v", stored)
	}
	if cleared, _ := h.module.ClearCompleted(ctx); cleared {
		t.Fatal("ClearCompleted() with nothing to clear reported true")
	}
}

func TestSingleStepChallengeIsNotDayGated(t *testing.T) {
	h := newHarness(t)
	h.assign(t, "cena_casera")
	result, err := h.module.Progress(context.Background())
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if !result.Completed {
		t.Fatal("meta 1 challenge should complete on first step")
	}
}

func TestCompletionCountReadsFreshDocument(t *testing.T) {
	h := newHarness(t)
	h.assign(t, "cena_casera")
	h.mem.Mutate(t, "ABC123", func(doc *couple.Document) { doc.DesafiosCompletados = 4 })

	if _, err := h.module.Progress(context.Background()); err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if got := h.module.CompletedCount(); got != 5 {
		t.Fatalf("CompletedCount() = %d, want 5", got)
	}
}

func TestProgressWithoutChallenge(t *testing.T) {
	h := newHarness(t)
	if _, err := h.module.Progress(context.Background()); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("Progress() error = %v", err)
	}
	unhydrated := New(couple.NewWriter(h.mem, "ABC123"), couple.Env{})
	if _, err := unhydrated.Progress(context.Background()); !errors.Is(err, couple.ErrNotHydrated) {
		t.Fatalf("Progress() before hydration error = %v", err)
	}
}
