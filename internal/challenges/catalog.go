package challenges

import "nosotros/api/internal/couple"

// Duration classes.
const (
	Daily   = "diario"
	Weekly  = "semanal"
	Monthly = "mensual"
)

// Catalog is the pool random challenges are drawn from.
var Catalog = []couple.Challenge{
	{ID: "cena_casera", Emoji: "🍝", Texto: "Cocinen juntos una cena nueva", Meta: 1, Categoria: "cocina", Duracion: Daily},
	{ID: "sin_pantallas", Emoji: "📵", Texto: "Una hora sin pantallas cada día", Meta: 7, Categoria: "conexion", Duracion: Weekly},
	{ID: "notas_sorpresa", Emoji: "💌", Texto: "Dejen una nota sorpresa al otro", Meta: 3, Categoria: "detalles", Duracion: Weekly},
	{ID: "paseo_diario", Emoji: "🚶", Texto: "Salgan a caminar juntos", Meta: 5, Categoria: "actividad", Duracion: Weekly},
	{ID: "foto_del_dia", Emoji: "📸", Texto: "Tómense una foto juntos cada día", Meta: 7, Categoria: "recuerdos", Duracion: Weekly},
	{ID: "tres_gracias", Emoji: "🙏", Texto: "Díganse tres cosas que agradecen", Meta: 1, Categoria: "conexion", Duracion: Daily},
	{ID: "lugar_nuevo", Emoji: "🗺️", Texto: "Visiten un lugar donde nunca hayan estado", Meta: 1, Categoria: "aventura", Duracion: Monthly},
	{ID: "playlist", Emoji: "🎶", Texto: "Armen una playlist de su historia", Meta: 1, Categoria: "recuerdos", Duracion: Weekly},
	{ID: "desayuno_cama", Emoji: "🥐", Texto: "Preparen un desayuno sorpresa", Meta: 2, Categoria: "detalles", Duracion: Monthly},
	{ID: "ejercicio", Emoji: "🏋️", Texto: "Hagan ejercicio juntos", Meta: 10, Categoria: "actividad", Duracion: Monthly},
	{ID: "carta", Emoji: "✉️", Texto: "Escriban una carta a mano", Meta: 1, Categoria: "detalles", Duracion: Weekly},
	{ID: "pregunta_profunda", Emoji: "💬", Texto: "Háganse una pregunta profunda al día", Meta: 5, Categoria: "conexion", Duracion: Weekly},
}

// FindChallenge returns the catalog entry with the given id.
func FindChallenge(id string) (couple.Challenge, bool) {
	for _, challenge := range Catalog {
		if challenge.ID == id {
			return challenge, true
		}
	}
	return couple.Challenge{}, false
}
