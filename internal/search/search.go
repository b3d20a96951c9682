package search

import "nosotros/api/internal/couple"

// Kind identifies the kind of entry in a search result.
type Kind string

const (
	KindPlan   Kind = "plan"
	KindNote   Kind = "nota"
	KindReason Kind = "razon"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Kind    Kind   `json:"tipo"`
	ID      string `json:"id"`
	Title   string `json:"titulo"`
	Snippet string `json:"fragmento"`
	Date    string `json:"fecha,omitempty"`
}

// Query describes a search request scoped to one couple.
type Query struct {
	Text     string
	CoupleID string
	Kind     Kind // empty = all kinds
	Limit    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Record is the data we index for one entry. IDs are unique per couple
// because entry ids are.
type Record struct {
	ID       string `json:"id"`
	CoupleID string `json:"coupleId"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Date     string `json:"date,omitempty"`
}

// DefaultLimit caps results when a query does not set one.
const DefaultLimit = 20

// Records flattens the searchable entries of a couple document.
func Records(coupleID string, doc couple.Document) []Record {
	records := make([]Record, 0, len(doc.Planes)+len(doc.Notas)+len(doc.Razones))
	opinions := map[string]string{}
	for _, date := range couple.SortedDates(doc.PlanesPorDia) {
		for _, entry := range doc.PlanesPorDia[date] {
			if entry.Opinion != "" {
				opinions[entry.PlanID] += " " + entry.Opinion
			}
		}
	}
	for _, plan := range doc.Planes {
		body := plan.Categoria + opinions[plan.ID]
		records = append(records, Record{ID: plan.ID, CoupleID: coupleID, Kind: KindPlan, Title: plan.Titulo, Body: body, Date: plan.CreadoEn})
	}
	for _, note := range doc.Notas {
		records = append(records, Record{ID: note.ID, CoupleID: coupleID, Kind: KindNote, Title: note.Categoria, Body: note.Texto, Date: note.Fecha})
	}
	for _, reason := range doc.Razones {
		records = append(records, Record{ID: reason.ID, CoupleID: coupleID, Kind: KindReason, Title: reason.AutorNombre, Body: reason.Texto, Date: reason.Fecha})
	}
	return records
}
