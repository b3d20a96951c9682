// Package couple defines the shared Couple Document, its normalization rules,
// and the read-modify-write contract every feature module writes through.
package couple

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Top-level field names of the Couple Document.
const (
	FieldPlanes                     = "planes"
	FieldPlanesPorDia               = "planesPorDia"
	FieldNotas                      = "notas"
	FieldRazones                    = "razones"
	FieldRazonDelDia                = "razonDelDia"
	FieldHistorialMoods             = "historialMoods"
	FieldDesafioActual              = "desafioActual"
	FieldProgresoDesafio            = "progresoDesafio"
	FieldUltimaActualizacionDesafio = "ultimaActualizacionDesafio"
	FieldIntentosCambio             = "intentosCambio"
	FieldDesafiosCompletados        = "desafiosCompletados"
	FieldLogrosDesbloqueados        = "logrosDesbloqueados"
	FieldPuntos                     = "puntos"
	FieldMascota                    = "mascota"
	FieldFechaAniversario           = "fechaAniversario"
	FieldAvatarURL                  = "avatarUrl"
)

// DateLayout is the calendar date format used as planesPorDia keys.
const DateLayout = "2006-01-02"

type Plan struct {
	ID         string `json:"id"`
	Titulo     string `json:"titulo"`
	Precio     string `json:"precio,omitempty"`
	Duracion   string `json:"duracion,omitempty"`
	Categoria  string `json:"categoria,omitempty"`
	Completado bool   `json:"completado"`
	CreadoPor  string `json:"creadoPor,omitempty"`
	CreadoEn   string `json:"creadoEn,omitempty"`
}

// DatedPlanEntry is a Plan's occurrence on one calendar date. Its completion
// flag is independent of the Plan's own flag.
type DatedPlanEntry struct {
	PlanID     string   `json:"planId"`
	Fotos      []string `json:"fotos"`
	Opinion    string   `json:"opinion,omitempty"`
	Puntuacion *int     `json:"puntuacion,omitempty"`
	Completado bool     `json:"completado"`
}

type Note struct {
	ID        string `json:"id"`
	Texto     string `json:"texto"`
	Categoria string `json:"categoria"`
	Fecha     string `json:"fecha"`
	CreadoPor string `json:"creadoPor,omitempty"`
}

type Reason struct {
	ID          string `json:"id"`
	Texto       string `json:"texto"`
	AutorID     string `json:"autorId"`
	AutorNombre string `json:"autorNombre"`
	Fecha       string `json:"fecha"`
}

type Challenge struct {
	ID        string `json:"id"`
	Emoji     string `json:"emoji"`
	Texto     string `json:"texto"`
	Meta      int    `json:"meta"`
	Categoria string `json:"categoria"`
	Duracion  string `json:"duracion"`
}

type Accessory struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Emoji    string `json:"emoji"`
	Precio   int    `json:"precio"`
	Equipado bool   `json:"equipado"`
}

// Reward is one entry of the pet's append-only reward log.
type Reward struct {
	Tipo        string `json:"tipo"`
	Descripcion string `json:"descripcion"`
	Puntos      int    `json:"puntos"`
	Nivel       int    `json:"nivel,omitempty"`
	Fecha       string `json:"fecha"`
}

type Pet struct {
	Nombre      string                       `json:"nombre"`
	Nivel       int                          `json:"nivel"`
	Especie     string                       `json:"especie"`
	Felicidad   int                          `json:"felicidad"`
	Cooldowns   map[string]map[string]string `json:"cooldowns"`
	Accesorios  []Accessory                  `json:"accesorios"`
	Recompensas []Reward                     `json:"recompensas"`
}

// Document is the typed view of one couple's shared JSON document.
type Document struct {
	Planes                     []Plan                      `json:"planes"`
	PlanesPorDia               map[string][]DatedPlanEntry `json:"planesPorDia"`
	Notas                      []Note                      `json:"notas"`
	Razones                    []Reason                    `json:"razones"`
	RazonDelDia                *Reason                     `json:"razonDelDia"`
	HistorialMoods             json.RawMessage             `json:"historialMoods,omitempty"`
	DesafioActual              *Challenge                  `json:"desafioActual"`
	ProgresoDesafio            int                         `json:"progresoDesafio"`
	UltimaActualizacionDesafio *string                     `json:"ultimaActualizacionDesafio"`
	IntentosCambio             int                         `json:"intentosCambio"`
	DesafiosCompletados        int                         `json:"desafiosCompletados"`
	LogrosDesbloqueados        []string                    `json:"logrosDesbloqueados"`
	Puntos                     int                         `json:"puntos"`
	Mascota                    *Pet                        `json:"mascota"`
	FechaAniversario           *string                     `json:"fechaAniversario"`
	AvatarURL                  *string                     `json:"avatarUrl"`
}

// DefaultPetName is given to pets created on first load.
const DefaultPetName = "Michi"

// NewDocument returns the all-empty document inserted when a couple is created.
func NewDocument() Document {
	doc := Document{}
	fillDefaults(&doc)
	return doc
}

// NewPet returns the pet created when a document has none.
func NewPet() *Pet {
	level := PetLevel(0)
	return &Pet{
		Nombre:      DefaultPetName,
		Nivel:       level,
		Especie:     PetSpecies(level),
		Felicidad:   50,
		Cooldowns:   map[string]map[string]string{},
		Accesorios:  []Accessory{},
		Recompensas: []Reward{},
	}
}

// Normalize decodes stored content and applies the default-filling rules.
// Initial loads, realtime snapshots and write commits all go through here.
func Normalize(raw json.RawMessage) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return Document{}, fmt.Errorf("decode couple document: %w", err)
		}
	}
	fillDefaults(&doc)
	return doc, nil
}

// Encode marshals a document for insertion.
func Encode(doc Document) (json.RawMessage, error) {
	fillDefaults(&doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode couple document: %w", err)
	}
	return out, nil
}

func fillDefaults(doc *Document) {
	if doc.Planes == nil {
		doc.Planes = []Plan{}
	}
	if doc.PlanesPorDia == nil {
		doc.PlanesPorDia = map[string][]DatedPlanEntry{}
	}
	for date, entries := range doc.PlanesPorDia {
		if len(entries) == 0 {
			delete(doc.PlanesPorDia, date)
			continue
		}
		for i := range entries {
			if entries[i].Fotos == nil {
				entries[i].Fotos = []string{}
			}
		}
	}
	if doc.Notas == nil {
		doc.Notas = []Note{}
	}
	if doc.Razones == nil {
		doc.Razones = []Reason{}
	}
	if doc.RazonDelDia != nil {
		current, ok := FindReason(doc.Razones, doc.RazonDelDia.ID)
		if ok {
			doc.RazonDelDia = &current
		} else {
			doc.RazonDelDia = nil
		}
	}
	if doc.LogrosDesbloqueados == nil {
		doc.LogrosDesbloqueados = []string{}
	}
	if doc.Puntos < 0 {
		doc.Puntos = 0
	}
	if doc.ProgresoDesafio < 0 {
		doc.ProgresoDesafio = 0
	}
	if doc.Mascota == nil {
		doc.Mascota = NewPet()
	}
	pet := doc.Mascota
	if pet.Nombre == "" {
		pet.Nombre = DefaultPetName
	}
	if pet.Cooldowns == nil {
		pet.Cooldowns = map[string]map[string]string{}
	}
	if pet.Accesorios == nil {
		pet.Accesorios = []Accessory{}
	}
	if pet.Recompensas == nil {
		pet.Recompensas = []Reward{}
	}
	pet.Felicidad = ClampHappiness(pet.Felicidad)
	pet.Nivel = PetLevel(doc.Puntos)
	pet.Especie = PetSpecies(pet.Nivel)
}

// FindReason returns the reason with the given id.
func FindReason(reasons []Reason, id string) (Reason, bool) {
	for _, reason := range reasons {
		if reason.ID == id {
			return reason, true
		}
	}
	return Reason{}, false
}

// FindPlan returns the plan with the given id.
func FindPlan(plans []Plan, id string) (Plan, bool) {
	for _, plan := range plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

// SortedDates returns the planesPorDia keys in ascending order.
func SortedDates(calendar map[string][]DatedPlanEntry) []string {
	dates := make([]string, 0, len(calendar))
	for date := range calendar {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// ValidDate reports whether value is a YYYY-MM-DD calendar date.
func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

// Today formats now as a calendar date in its own location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// Timestamp formats now for created/updated fields.
func Timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
