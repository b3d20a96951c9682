package achievements

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/couple/coupletest"
)

func newTestModule(t *testing.T, doc couple.Document) (*Module, *coupletest.MemoryStore) {
	t.Helper()
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", doc)
	module := New(couple.NewWriter(mem, "ABC123"), nil)
	module.Hydrate(mem.Document(t, "ABC123"))
	return module, mem
}

func TestApplyPersistsUnlocksAndPoints(t *testing.T) {
	ctx := context.Background()
	module, mem := newTestModule(t, couple.NewDocument())

	got, err := module.Apply(ctx, Metrics{TotalPlanesCompletados: 1}, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []string{"primer_plan"}, module.Unlocked())
	require.Equal(t, 10, module.Points())

	stored := mem.Document(t, "ABC123")
	require.Equal(t, []string{"primer_plan"}, stored.LogrosDesbloqueados)
	require.Equal(t, 10, stored.Puntos)

	gets, updates := mem.Calls()
	got, err = module.Apply(ctx, Metrics{TotalPlanesCompletados: 1}, true)
	require.NoError(t, err)
	require.Nil(t, got)
	g, u := mem.Calls()
	require.Equal(t, gets, g)
	require.Equal(t, updates, u)
}

func TestApplyFailureDoesNotAdvanceMirror(t *testing.T) {
	ctx := context.Background()
	module, mem := newTestModule(t, couple.NewDocument())
	mem.UpdateErr = errors.New("timeout")

	_, err := module.Apply(ctx, Metrics{TotalPlanesCompletados: 1}, true)
	require.ErrorIs(t, err, couple.ErrStore)
	require.Empty(t, module.Unlocked())
	require.Zero(t, module.Points())

	mem.UpdateErr = nil
	got, err := module.Apply(ctx, Metrics{TotalPlanesCompletados: 1}, true)
	require.NoError(t, err)
	require.Equal(t, 10, got.PointsGained)
	require.Equal(t, 10, mem.Document(t, "ABC123").Puntos)
}

func TestApplyEvaluatesPersistedState(t *testing.T) {
	ctx := context.Background()
	module, mem := newTestModule(t, couple.NewDocument())

	// The partner device already granted the unlock and spent some points.
	mem.Mutate(t, "ABC123", func(doc *couple.Document) {
		doc.LogrosDesbloqueados = []string{"primer_plan"}
		doc.Puntos = 4
	})

	got, err := module.Apply(ctx, Metrics{TotalPlanesCompletados: 1, TotalMoods: 1}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"primer_mood"}, got.NewlyUnlocked)

	stored := mem.Document(t, "ABC123")
	require.Equal(t, []string{"primer_plan", "primer_mood"}, stored.LogrosDesbloqueados)
	require.Equal(t, 9, stored.Puntos)
	require.Equal(t, 9, module.Points())
}

func TestApplyRequiresHydration(t *testing.T) {
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	module := New(couple.NewWriter(mem, "ABC123"), nil)

	_, err := module.Apply(context.Background(), Metrics{TotalPlanesCompletados: 1}, false)
	require.ErrorIs(t, err, couple.ErrNotHydrated)
	gets, updates := mem.Calls()
	require.Zero(t, gets+updates)
}

func TestProgress(t *testing.T) {
	doc := couple.NewDocument()
	doc.LogrosDesbloqueados = []string{"primer_plan", "planes_completados_nivel1"}
	module, _ := newTestModule(t, doc)

	items := module.Progress(Metrics{TotalPlanesCompletados: 7})
	require.Len(t, items, len(Catalog))
	require.True(t, items[0].Unlocked)
	require.Equal(t, 1, items[1].Level)
	require.Equal(t, 10, items[1].Next)
	require.Equal(t, 7, items[1].Value)
	require.False(t, items[2].Unlocked)
}

func TestCollectMetrics(t *testing.T) {
	score, perfect := 7, 10
	anniversary := "2020-02-14"
	doc := couple.NewDocument()
	doc.Planes = []couple.Plan{
		{ID: "p1", Completado: true},
		{ID: "p2", Completado: true},
		{ID: "p3"},
	}
	doc.PlanesPorDia = map[string][]couple.DatedPlanEntry{
		"2024-05-01": {{PlanID: "p1", Completado: true, Fotos: []string{"a", "b"}, Puntuacion: &score}},
		"2024-05-02": {{PlanID: "p3", Fotos: []string{"c"}, Puntuacion: &perfect}},
	}
	doc.FechaAniversario = &anniversary
	doc.DesafiosCompletados = 2

	m := CollectMetrics(doc, 4)
	require.Equal(t, 3, m.TotalPlanes)
	require.Equal(t, 2, m.TotalPlanesCompletados)
	require.Equal(t, 3, m.TotalFotos)
	require.Equal(t, 2, m.PlanesPuntuados)
	require.Equal(t, 1, m.PuntuacionesPerfectas)
	require.Equal(t, 2, m.DiasConPlanes)
	require.Equal(t, 4, m.TotalMoods)
	require.Equal(t, 2, m.DesafiosCompletados)
	require.True(t, m.TieneAniversario)
	require.Equal(t, 50, m.FelicidadMascota)
}
