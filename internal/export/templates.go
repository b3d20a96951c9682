package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/book.html
var templateFS embed.FS

var bookTemplate = template.Must(template.New("book.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/book.html"))

// BookData holds data for the memory book template.
type BookData struct {
	Title       string
	CoupleID    string
	Anniversary string
	Points      int
	GeneratedAt time.Time
	Days        []BookDay
	Reasons     []BookReason
	Notes       []BookNote
}

type BookDay struct {
	Date  string
	Plans []BookPlan
}

type BookPlan struct {
	Title     string
	Completed bool
	Opinion   string
	Score     int
	HasScore  bool
	Photos    []string
}

type BookReason struct {
	Text   string
	Author string
}

type BookNote struct {
	Text     string
	Category string
}

// RenderBookHTML renders the memory book template with provided data
func RenderBookHTML(data BookData) (string, error) {
	var buf bytes.Buffer
	if err := bookTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
