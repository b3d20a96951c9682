// Package pet owns the shared virtual pet: interactions, the accessory shop
// and the level derived from the couple's points.
package pet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"nosotros/api/internal/couple"
)

var (
	ErrInsufficientBalance = errors.New("puntos insuficientes")
	ErrCooldown            = errors.New("interaction on cooldown")
	ErrUnknownInteraction  = errors.New("unknown interaction")
	ErrUnknownAccessory    = errors.New("unknown accessory")
	ErrAlreadyOwned        = errors.New("accessory already owned")
	ErrNotOwned            = errors.New("accessory not owned")
	ErrEmptyName           = errors.New("pet name is required")
	ErrNoUser              = errors.New("no user selected")
)

// Reward log kinds.
const (
	RewardLevel    = "nivel"
	RewardPurchase = "compra"
)

var interactions = map[string]struct {
	happiness int
	cooldown  time.Duration
}{
	Feed: {happiness: 10, cooldown: 4 * time.Hour},
	Play: {happiness: 15, cooldown: 2 * time.Hour},
	Pet:  {happiness: 5, cooldown: 30 * time.Minute},
}

// Interactions lists the interaction kinds for display.
func Interactions() []Interaction {
	out := make([]Interaction, 0, len(interactions))
	for _, kind := range []string{Feed, Play, Pet} {
		rule := interactions[kind]
		out = append(out, Interaction{Kind: kind, Happiness: rule.happiness, Cooldown: rule.cooldown.String()})
	}
	return out
}

// CooldownError reports how long until the interaction is allowed again.
type CooldownError struct {
	Kind      string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s disponible en %s", e.Kind, e.Remaining.Round(time.Minute))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

type Module struct {
	guard  couple.Guard
	env    couple.Env
	pet    *couple.Pet
	points int
}

func New(writer *couple.Writer, env couple.Env) *Module {
	return &Module{guard: couple.NewGuard(writer), env: env.WithDefaults(), pet: couple.NewPet()}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.pet = couple.ClonePet(doc.Mascota)
	m.points = doc.Puntos
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

// ObservePoints mirrors a points change committed by another module.
func (m *Module) ObservePoints(points int) {
	m.points = points
}

func (m *Module) Pet() couple.Pet {
	return *couple.ClonePet(m.pet)
}

func (m *Module) Points() int {
	return m.points
}

// Interact applies one interaction for the actor. Cooldowns are tracked per
// user and per kind.
func (m *Module) Interact(ctx context.Context, kind string) (couple.Pet, error) {
	rule, ok := interactions[kind]
	if !ok {
		return couple.Pet{}, ErrUnknownInteraction
	}
	user := m.env.Actor().ID
	if user == "" {
		return couple.Pet{}, ErrNoUser
	}
	now := m.env.Now()
	if err := checkCooldown(m.pet, user, kind, rule.cooldown, now); err != nil {
		return couple.Pet{}, err
	}

	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		pet := couple.ClonePet(fresh.Mascota)
		if err := checkCooldown(pet, user, kind, rule.cooldown, now); err != nil {
			return nil, err
		}
		pet.Felicidad = couple.ClampHappiness(pet.Felicidad + rule.happiness)
		if pet.Cooldowns[user] == nil {
			pet.Cooldowns[user] = map[string]string{}
		}
		pet.Cooldowns[user][kind] = couple.Timestamp(now)
		return map[string]any{couple.FieldMascota: pet}, nil
	})
	if err != nil {
		return couple.Pet{}, err
	}
	m.commit(doc)
	return m.Pet(), nil
}

// Remaining returns the actor's cooldown left per interaction kind.
func (m *Module) Remaining() map[string]time.Duration {
	out := map[string]time.Duration{}
	user := m.env.Actor().ID
	now := m.env.Now()
	for kind, rule := range interactions {
		var cooldownErr *CooldownError
		if errors.As(checkCooldown(m.pet, user, kind, rule.cooldown, now), &cooldownErr) {
			out[kind] = cooldownErr.Remaining
		} else {
			out[kind] = 0
		}
	}
	return out
}

// Buy spends points on a shop accessory. The balance is checked against the
// mirror before any store call and again against the stored balance.
func (m *Module) Buy(ctx context.Context, accessoryID string) (couple.Pet, error) {
	item, ok := findShopItem(accessoryID)
	if !ok {
		return couple.Pet{}, ErrUnknownAccessory
	}
	if owned(m.pet, accessoryID) {
		return couple.Pet{}, ErrAlreadyOwned
	}
	if m.points < item.Precio {
		return couple.Pet{}, ErrInsufficientBalance
	}
	now := m.env.Now()

	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		if fresh.Puntos < item.Precio {
			return nil, ErrInsufficientBalance
		}
		pet := couple.ClonePet(fresh.Mascota)
		if owned(pet, accessoryID) {
			return nil, ErrAlreadyOwned
		}
		pet.Accesorios = append(pet.Accesorios, item)
		pet.Recompensas = append(pet.Recompensas, couple.Reward{
			Tipo:        RewardPurchase,
			Descripcion: item.Emoji + " " + item.Nombre,
			Puntos:      -item.Precio,
			Fecha:       couple.Timestamp(now),
		})
		return map[string]any{
			couple.FieldMascota: pet,
			couple.FieldPuntos:  fresh.Puntos - item.Precio,
		}, nil
	})
	if err != nil {
		return couple.Pet{}, err
	}
	m.commit(doc)
	return m.Pet(), nil
}

func (m *Module) SetEquipped(ctx context.Context, accessoryID string, equipped bool) (couple.Pet, error) {
	if !owned(m.pet, accessoryID) {
		return couple.Pet{}, ErrNotOwned
	}
	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		pet := couple.ClonePet(fresh.Mascota)
		idx := slices.IndexFunc(pet.Accesorios, func(a couple.Accessory) bool { return a.ID == accessoryID })
		if idx < 0 {
			return nil, ErrNotOwned
		}
		pet.Accesorios[idx].Equipado = equipped
		return map[string]any{couple.FieldMascota: pet}, nil
	})
	if err != nil {
		return couple.Pet{}, err
	}
	m.commit(doc)
	return m.Pet(), nil
}

func (m *Module) Rename(ctx context.Context, name string) (couple.Pet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return couple.Pet{}, ErrEmptyName
	}
	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		pet := couple.ClonePet(fresh.Mascota)
		pet.Nombre = name
		return map[string]any{couple.FieldMascota: pet}, nil
	})
	if err != nil {
		return couple.Pet{}, err
	}
	m.commit(doc)
	return m.Pet(), nil
}

// SyncLevel records a level-up reward once the stored points reach a level
// above the last rewarded one. It reports whether a reward was written.
func (m *Module) SyncLevel(ctx context.Context, points int) (bool, error) {
	m.points = points
	if couple.PetLevel(points) <= lastRewardedLevel(m.pet) {
		return false, nil
	}
	now := m.env.Now()
	leveled := false
	doc, err := m.guard.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		pet := couple.ClonePet(fresh.Mascota)
		level := couple.PetLevel(fresh.Puntos)
		if level <= lastRewardedLevel(pet) {
			return nil, nil
		}
		pet.Nivel = level
		pet.Especie = couple.PetSpecies(level)
		pet.Recompensas = append(pet.Recompensas, couple.Reward{
			Tipo:        RewardLevel,
			Descripcion: fmt.Sprintf("¡%s subió al nivel %d!", pet.Nombre, level),
			Nivel:       level,
			Fecha:       couple.Timestamp(now),
		})
		leveled = true
		return map[string]any{couple.FieldMascota: pet}, nil
	})
	if err != nil {
		return false, err
	}
	m.commit(doc)
	return leveled, nil
}

func (m *Module) commit(doc couple.Document) {
	m.pet = couple.ClonePet(doc.Mascota)
	m.points = doc.Puntos
}

func checkCooldown(pet *couple.Pet, user, kind string, cooldown time.Duration, now time.Time) error {
	last, ok := pet.Cooldowns[user][kind]
	if !ok {
		return nil
	}
	at, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return nil
	}
	if remaining := at.Add(cooldown).Sub(now); remaining > 0 {
		return &CooldownError{Kind: kind, Remaining: remaining}
	}
	return nil
}

func owned(pet *couple.Pet, accessoryID string) bool {
	return slices.ContainsFunc(pet.Accesorios, func(a couple.Accessory) bool { return a.ID == accessoryID })
}

// lastRewardedLevel is the highest level recorded in the reward log, or 1.
func lastRewardedLevel(pet *couple.Pet) int {
	level := 1
	for _, reward := range pet.Recompensas {
		if reward.Tipo == RewardLevel && reward.Nivel > level {
			level = reward.Nivel
		}
	}
	return level
}
