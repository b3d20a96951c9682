package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX converts the memory book with pandoc. Remote photos are left as
// links; pandoc does not fetch them.
func exportDOCX(ctx context.Context, html, title string) (*Result, error) {
	pandoc, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, ErrDOCXDependencyMissing
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pandoc,
		"--from", "html",
		"--to", "docx",
		"--metadata", "title="+title,
		"--output", "-",
	)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("pandoc: %w", err)
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMime,
	}, nil
}
