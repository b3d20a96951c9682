package couple

// Pet species, by level threshold.
const (
	SpeciesKitten     = "gatito"
	SpeciesAdolescent = "adolescente"
	SpeciesAdult      = "adulto"
	SpeciesLegendary  = "legendario"
)

// MaxHappiness caps Pet.Felicidad.
const MaxHappiness = 100

// PointsPerLevel is how many points move the pet up one level.
const PointsPerLevel = 100

// PetLevel derives the pet level purely from the couple's points.
func PetLevel(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// PetSpecies derives the species from a level.
func PetSpecies(level int) string {
	switch {
	case level >= 20:
		return SpeciesLegendary
	case level >= 10:
		return SpeciesAdult
	case level >= 5:
		return SpeciesAdolescent
	default:
		return SpeciesKitten
	}
}

func ClampHappiness(value int) int {
	if value < 0 {
		return 0
	}
	if value > MaxHappiness {
		return MaxHappiness
	}
	return value
}

// ClonePet deep-copies a pet so mirrors never share nested maps or slices.
func ClonePet(pet *Pet) *Pet {
	if pet == nil {
		return nil
	}
	out := *pet
	out.Cooldowns = make(map[string]map[string]string, len(pet.Cooldowns))
	for user, kinds := range pet.Cooldowns {
		copied := make(map[string]string, len(kinds))
		for kind, at := range kinds {
			copied[kind] = at
		}
		out.Cooldowns[user] = copied
	}
	out.Accesorios = append([]Accessory{}, pet.Accesorios...)
	out.Recompensas = append([]Reward{}, pet.Recompensas...)
	return &out
}
