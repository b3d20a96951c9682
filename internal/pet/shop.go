package pet

import "nosotros/api/internal/couple"

// Interaction kinds.
const (
	Feed = "alimentar"
	Play = "jugar"
	Pet  = "acariciar"
)

// Interaction is the happiness gain and per-user cooldown of one kind.
type Interaction struct {
	Kind      string `json:"tipo"`
	Happiness int    `json:"felicidad"`
	Cooldown  string `json:"cooldown"`
}

// Shop lists the accessories that can be bought with points.
var Shop = []couple.Accessory{
	{ID: "lazo", Nombre: "Lazo rosa", Emoji: "🎀", Precio: 20},
	{ID: "gorro", Nombre: "Gorro de lana", Emoji: "🧶", Precio: 35},
	{ID: "gafas", Nombre: "Gafas de sol", Emoji: "🕶️", Precio: 50},
	{ID: "corona", Nombre: "Corona", Emoji: "👑", Precio: 120},
	{ID: "bufanda", Nombre: "Bufanda", Emoji: "🧣", Precio: 40},
	{ID: "collar", Nombre: "Collar de corazón", Emoji: "💖", Precio: 75},
}

func findShopItem(id string) (couple.Accessory, bool) {
	for _, item := range Shop {
		if item.ID == id {
			return item, true
		}
	}
	return couple.Accessory{}, false
}
