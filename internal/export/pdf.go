package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	pdfTimeout = 45 * time.Second
	// photos are remote URLs; the book is printed without them after this wait
	photoWait = 10 * time.Second
)

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

func findChrome() (string, bool) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// bookDataURL inlines the book as a data URL. PathEscape keeps spaces as %20.
func bookDataURL(html string) string {
	return "data:text/html;charset=utf-8," + url.PathEscape(html)
}

// exportPDF prints the memory book as an A5 booklet with headless Chrome.
func exportPDF(parent context.Context, html, title string) (*Result, error) {
	chrome, ok := findChrome()
	if !ok {
		return nil, ErrPDFDependencyMissing
	}

	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chrome),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(bookDataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(waitForPhotos),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(5.83). // A5
				WithPaperHeight(8.27).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print memory book: %w", err)
	}

	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

func waitForPhotos(ctx context.Context) error {
	var loaded bool
	err := chromedp.Poll(
		`Array.from(document.images).every(img => img.complete)`,
		&loaded,
		chromedp.WithPollingTimeout(photoWait),
	).Do(ctx)
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return nil
	}
	return err
}

// sanitizeFilename turns the book title into an ASCII file name.
func sanitizeFilename(title string) string {
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u")
	var b strings.Builder
	for _, r := range replacer.Replace(strings.ToLower(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "recuerdos"
	}
	return name
}
