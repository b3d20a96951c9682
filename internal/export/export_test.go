package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nosotros/api/internal/couple"
)

func bookDocument() couple.Document {
	score := 9
	anniversary := "2020-02-14"
	doc := couple.NewDocument()
	doc.Planes = []couple.Plan{{ID: "p1", Titulo: "Picnic"}, {ID: "p2", Titulo: "Museo"}}
	doc.PlanesPorDia = map[string][]couple.DatedPlanEntry{
		"2024-06-01": {{PlanID: "p2", Fotos: []string{}}},
		"2024-05-01": {{PlanID: "p1", Completado: true, Opinion: "Día perfecto", Puntuacion: &score, Fotos: []string{"https://cdn.test/a.jpg"}}},
		"2024-07-01": {{PlanID: "gone", Fotos: []string{}}},
	}
	doc.Razones = []couple.Reason{{ID: "r1", Texto: "Tu paciencia", AutorNombre: "Ana"}}
	doc.Notas = []couple.Note{{ID: "n1", Texto: "Reservar mesa <b>", Categoria: "general"}}
	doc.FechaAniversario = &anniversary
	doc.Puntos = 120
	return doc
}

func TestBuildBook(t *testing.T) {
	data := BuildBook("ABC123", bookDocument(), time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	if len(data.Days) != 2 {
		t.Fatalf("len(Days) = %d, want 2 (dangling entry skipped)", len(data.Days))
	}
	if data.Days[0].Date != "2024-05-01" || data.Days[1].Date != "2024-06-01" {
		t.Fatalf("days not sorted: %+v", data.Days)
	}
	first := data.Days[0].Plans[0]
	if first.Title != "Picnic" || !first.HasScore || first.Score != 9 || !first.Completed {
		t.Fatalf("unexpected plan: %+v", first)
	}
	if data.Anniversary != "2020-02-14" || data.Points != 120 {
		t.Fatalf("unexpected header: %+v", data)
	}
}

func TestRenderBookHTML(t *testing.T) {
	html, err := RenderBookHTML(BuildBook("ABC123", bookDocument(), time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("RenderBookHTML() error = %v", err)
	}
	for _, want := range []string{"Picnic", "9/10", "Día perfecto", "Tu paciencia", "Juntos desde 2020-02-14", "01/08/2024", `src="https://cdn.test/a.jpg"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered HTML missing %q", want)
		}
	}
	if strings.Contains(html, "Reservar mesa <b>") {
		t.Fatal("note text was not escaped")
	}
}

func TestExportDispatchesByFormat(t *testing.T) {
	var gotTitle string
	svc := &Service{
		now: time.Now,
		pdf: func(_ context.Context, html, title string) (*Result, error) {
			gotTitle = title
			return &Result{Data: []byte(html), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
		},
		docx: func(context.Context, string, string) (*Result, error) {
			return nil, ErrDOCXDependencyMissing
		},
	}

	result, err := svc.Export(context.Background(), "ABC123", bookDocument(), FormatPDF)
	if err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}
	if result.Filename != "nuestro-libro-de-recuerdos.pdf" || gotTitle == "" {
		t.Fatalf("unexpected result: %s (title %q)", result.Filename, gotTitle)
	}
	if _, err := svc.Export(context.Background(), "ABC123", bookDocument(), FormatDOCX); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("Export(docx) error = %v", err)
	}
	if _, err := svc.Export(context.Background(), "ABC123", bookDocument(), "odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Export(odt) error = %v", err)
	}
}

func TestBookDataURL(t *testing.T) {
	got := bookDataURL("<p>a b #1</p>")
	want := "data:text/html;charset=utf-8,%3Cp%3Ea%20b%20%231%3C%2Fp%3E"
	if got != want {
		t.Fatalf("bookDataURL() = %q, want %q", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("Nuestro Libro!"); got != "nuestro-libro" {
		t.Fatalf("sanitizeFilename() = %q", got)
	}
	if got := sanitizeFilename("Año en León"); got != "ano-en-leon" {
		t.Fatalf("sanitizeFilename() = %q", got)
	}
	if got := sanitizeFilename("¡¿?!"); got != "recuerdos" {
		t.Fatalf("sanitizeFilename() = %q", got)
	}
}
