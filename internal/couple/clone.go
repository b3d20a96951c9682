package couple

// CloneCalendar deep-copies planesPorDia.
func CloneCalendar(calendar map[string][]DatedPlanEntry) map[string][]DatedPlanEntry {
	out := make(map[string][]DatedPlanEntry, len(calendar))
	for date, entries := range calendar {
		out[date] = CloneEntries(entries)
	}
	return out
}

// CloneEntries deep-copies one date's entries.
func CloneEntries(entries []DatedPlanEntry) []DatedPlanEntry {
	out := make([]DatedPlanEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		out[i].Fotos = append([]string{}, entry.Fotos...)
		if entry.Puntuacion != nil {
			score := *entry.Puntuacion
			out[i].Puntuacion = &score
		}
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

// Clone deep-copies a document.
func (d Document) Clone() Document {
	out := d
	out.Planes = append([]Plan{}, d.Planes...)
	out.PlanesPorDia = CloneCalendar(d.PlanesPorDia)
	out.Notas = append([]Note{}, d.Notas...)
	out.Razones = append([]Reason{}, d.Razones...)
	if d.RazonDelDia != nil {
		reason := *d.RazonDelDia
		out.RazonDelDia = &reason
	}
	if d.HistorialMoods != nil {
		out.HistorialMoods = append([]byte{}, d.HistorialMoods...)
	}
	if d.DesafioActual != nil {
		challenge := *d.DesafioActual
		out.DesafioActual = &challenge
	}
	out.UltimaActualizacionDesafio = cloneString(d.UltimaActualizacionDesafio)
	out.LogrosDesbloqueados = append([]string{}, d.LogrosDesbloqueados...)
	out.Mascota = ClonePet(d.Mascota)
	out.FechaAniversario = cloneString(d.FechaAniversario)
	out.AvatarURL = cloneString(d.AvatarURL)
	return out
}
