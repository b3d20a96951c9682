package achievements

// Catalog is every achievement, in evaluation order.
var Catalog = []Definition{
	{
		ID: "primer_plan", Title: "Primera cita", Icon: "💕", Points: 10, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.TotalPlanesCompletados >= 1 },
	},
	{
		ID: "planes_completados", Title: "Aventureros", Icon: "🗺️", Points: 15, Kind: KindLeveled,
		Levels: []int{5, 10, 25, 50},
		Value:  func(m Metrics) int { return m.TotalPlanesCompletados },
	},
	{
		ID: "planificadores", Title: "Planificadores", Icon: "📋", Points: 5, Kind: KindLeveled,
		Levels: []int{10, 25, 50},
		Value:  func(m Metrics) int { return m.TotalPlanes },
	},
	{
		ID: "fotografos", Title: "Fotógrafos", Icon: "📸", Points: 10, Kind: KindLeveled,
		Levels: []int{10, 25, 50, 100},
		Value:  func(m Metrics) int { return m.TotalFotos },
	},
	{
		ID: "criticos", Title: "Críticos", Icon: "⭐", Points: 10, Kind: KindLeveled,
		Levels: []int{5, 15, 30},
		Value:  func(m Metrics) int { return m.PlanesPuntuados },
	},
	{
		ID: "plan_perfecto", Title: "Plan perfecto", Icon: "🌟", Points: 20, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.PuntuacionesPerfectas >= 1 },
	},
	{
		ID: "escritores", Title: "Escritores", Icon: "📝", Points: 5, Kind: KindLeveled,
		Levels: []int{5, 20, 50},
		Value:  func(m Metrics) int { return m.TotalNotas },
	},
	{
		ID: "romanticos", Title: "Románticos", Icon: "💌", Points: 10, Kind: KindLeveled,
		Levels: []int{5, 15, 30, 50},
		Value:  func(m Metrics) int { return m.TotalRazones },
	},
	{
		ID: "primer_mood", Title: "¿Cómo te sientes?", Icon: "😊", Points: 5, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.TotalMoods >= 1 },
	},
	{
		ID: "emociones", Title: "En sintonía", Icon: "🎭", Points: 5, Kind: KindLeveled,
		Levels: []int{10, 30, 100},
		Value:  func(m Metrics) int { return m.TotalMoods },
	},
	{
		ID: "primer_desafio", Title: "Primer desafío", Icon: "🏁", Points: 15, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.DesafiosCompletados >= 1 },
	},
	{
		ID: "retadores", Title: "Retadores", Icon: "🏆", Points: 20, Kind: KindLeveled,
		Levels: []int{5, 10, 25},
		Value:  func(m Metrics) int { return m.DesafiosCompletados },
	},
	{
		ID: "aniversario", Title: "Nuestra fecha", Icon: "💍", Points: 10, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.TieneAniversario },
	},
	{
		ID: "dias_especiales", Title: "Días especiales", Icon: "📅", Points: 10, Kind: KindLeveled,
		Levels: []int{5, 15, 30},
		Value:  func(m Metrics) int { return m.DiasConPlanes },
	},
	{
		ID: "mascota_feliz", Title: "Mascota feliz", Icon: "🐱", Points: 15, Kind: KindUnique,
		Met: func(m Metrics) bool { return m.FelicidadMascota >= 100 },
	},
}

// Find returns the catalog definition with id.
func Find(id string) (Definition, bool) {
	for _, def := range Catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
