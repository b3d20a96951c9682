package achievements

import "nosotros/api/internal/couple"

// Metrics is the aggregate snapshot achievement rules are evaluated on.
type Metrics struct {
	TotalPlanes            int  `json:"totalPlanes"`
	TotalPlanesCompletados int  `json:"totalPlanesCompletados"`
	TotalFotos             int  `json:"totalFotos"`
	PlanesPuntuados        int  `json:"planesPuntuados"`
	PuntuacionesPerfectas  int  `json:"puntuacionesPerfectas"`
	TotalNotas             int  `json:"totalNotas"`
	TotalRazones           int  `json:"totalRazones"`
	TotalMoods             int  `json:"totalMoods"`
	DesafiosCompletados    int  `json:"desafiosCompletados"`
	TieneAniversario       bool `json:"tieneAniversario"`
	DiasConPlanes          int  `json:"diasConPlanes"`
	FelicidadMascota       int  `json:"felicidadMascota"`
	Puntos                 int  `json:"puntos"`
	LogrosDesbloqueados    int  `json:"logrosDesbloqueados"`
}

// PerfectScore is the dated entry score counted as perfect.
const PerfectScore = 10

// CollectMetrics aggregates a normalized document plus the couple's mood
// row count. A plan completed directly counts once unless one of its dated
// entries is already counted as completed.
func CollectMetrics(doc couple.Document, moodCount int) Metrics {
	m := Metrics{
		TotalPlanes:         len(doc.Planes),
		TotalNotas:          len(doc.Notas),
		TotalRazones:        len(doc.Razones),
		TotalMoods:          moodCount,
		DesafiosCompletados: doc.DesafiosCompletados,
		TieneAniversario:    doc.FechaAniversario != nil && *doc.FechaAniversario != "",
		DiasConPlanes:       len(doc.PlanesPorDia),
		Puntos:              doc.Puntos,
		LogrosDesbloqueados: len(doc.LogrosDesbloqueados),
	}
	if doc.Mascota != nil {
		m.FelicidadMascota = doc.Mascota.Felicidad
	}

	completedByEntry := map[string]bool{}
	for _, entries := range doc.PlanesPorDia {
		for _, entry := range entries {
			m.TotalFotos += len(entry.Fotos)
			if entry.Completado {
				m.TotalPlanesCompletados++
				completedByEntry[entry.PlanID] = true
			}
			if entry.Puntuacion != nil {
				m.PlanesPuntuados++
				if *entry.Puntuacion == PerfectScore {
					m.PuntuacionesPerfectas++
				}
			}
		}
	}
	for _, plan := range doc.Planes {
		if plan.Completado && !completedByEntry[plan.ID] {
			m.TotalPlanesCompletados++
		}
	}
	return m
}
