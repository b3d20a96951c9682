package export

import (
	"context"
	"fmt"
	"time"

	"nosotros/api/internal/couple"
)

// Converter turns rendered HTML into a downloadable file.
type Converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides memory book export.
type Service struct {
	pdf  Converter
	docx Converter
	now  func() time.Time
}

// NewService creates an export service backed by headless Chrome and pandoc.
func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX, now: time.Now}
}

// Export renders the couple's memory book in the requested format.
func (s *Service) Export(ctx context.Context, coupleID string, doc couple.Document, format Format) (*Result, error) {
	var convert Converter
	switch format {
	case FormatPDF:
		convert = s.pdf
	case FormatDOCX:
		convert = s.docx
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	data := BuildBook(coupleID, doc, s.now())
	html, err := RenderBookHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return convert(ctx, html, data.Title)
}

// BuildBook collects the dated plans (oldest first), reasons and notes.
func BuildBook(coupleID string, doc couple.Document, now time.Time) BookData {
	data := BookData{
		Title:       "Nuestro libro de recuerdos",
		CoupleID:    coupleID,
		Points:      doc.Puntos,
		GeneratedAt: now,
		Days:        []BookDay{},
		Reasons:     []BookReason{},
		Notes:       []BookNote{},
	}
	if doc.FechaAniversario != nil {
		data.Anniversary = *doc.FechaAniversario
	}

	for _, date := range couple.SortedDates(doc.PlanesPorDia) {
		day := BookDay{Date: date}
		for _, entry := range doc.PlanesPorDia[date] {
			plan, ok := couple.FindPlan(doc.Planes, entry.PlanID)
			if !ok {
				continue
			}
			item := BookPlan{
				Title:     plan.Titulo,
				Completed: entry.Completado,
				Opinion:   entry.Opinion,
				Photos:    entry.Fotos,
			}
			if entry.Puntuacion != nil {
				item.Score = *entry.Puntuacion
				item.HasScore = true
			}
			day.Plans = append(day.Plans, item)
		}
		if len(day.Plans) > 0 {
			data.Days = append(data.Days, day)
		}
	}
	for _, reason := range doc.Razones {
		data.Reasons = append(data.Reasons, BookReason{Text: reason.Texto, Author: reason.AutorNombre})
	}
	for _, note := range doc.Notas {
		data.Notes = append(data.Notes, BookNote{Text: note.Texto, Category: note.Categoria})
	}
	return data
}
