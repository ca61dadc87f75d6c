package formats

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"folio/internal/logging"
)

// pdfHandler extracts PDF metadata through the poppler command line
// tools. Availability is probed once per process; without poppler
// installed the handler falls back to filename-derived metadata.
type pdfHandler struct {
	probeOnce sync.Once
	available bool
}

func newPDFHandler() *pdfHandler {
	return &pdfHandler{}
}

// popplerAvailable reports whether pdfinfo and pdftoppm are on PATH.
func (h *pdfHandler) popplerAvailable() bool {
	h.probeOnce.Do(func() {
		for _, tool := range []string{"pdfinfo", "pdftoppm"} {
			if _, err := exec.LookPath(tool); err != nil {
				logging.Warn("%s not found in PATH, PDF metadata extraction disabled", tool)
				return
			}
		}
		h.available = true
	})
	return h.available
}

func (h *pdfHandler) Extract(ctx context.Context, filePath string) (*Metadata, error) {
	meta := &Metadata{Title: fileStem(filePath)}
	if !h.popplerAvailable() {
		return meta, nil
	}

	if err := h.readInfo(ctx, filePath, meta); err != nil {
		return nil, err
	}

	// A failed cover render is not fatal, the metadata still counts.
	cover, err := h.renderCover(ctx, filePath)
	if err != nil {
		logging.Debug("failed to render PDF cover for %s: %v", filePath, err)
	} else {
		meta.Cover = cover
	}

	return meta, nil
}

// readInfo runs pdfinfo and maps its output onto meta.
func (h *pdfHandler) readInfo(ctx context.Context, filePath string, meta *Metadata) error {
	cmd := exec.CommandContext(ctx, "pdfinfo", filePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdfinfo %s: %w - %s", filePath, err, strings.TrimSpace(stderr.String()))
	}

	applyPDFInfo(meta, stdout.String())
	return nil
}

// applyPDFInfo parses the key/value lines printed by pdfinfo.
func applyPDFInfo(meta *Metadata, output string) {
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case "Title":
			meta.Title = value
		case "Author":
			meta.Authors = []string{value}
		case "Subject":
			meta.Description = value
		case "Keywords":
			for _, tag := range strings.FieldsFunc(value, isTagSeparator) {
				if tag = strings.TrimSpace(tag); tag != "" {
					meta.Tags = append(meta.Tags, tag)
				}
			}
		case "Producer":
			meta.Publisher = value
		case "Pages":
			if pages, err := strconv.Atoi(value); err == nil {
				meta.PageCount = pages
			}
		}
	}
}

func isTagSeparator(r rune) bool {
	return r == ',' || r == ';'
}

// renderCover rasterizes page one to PNG through pdftoppm.
func (h *pdfHandler) renderCover(ctx context.Context, filePath string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "folio-pdf-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn("failed to remove temp dir %s: %v", dir, err)
		}
	}()

	out := filepath.Join(dir, "cover")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", "1",
		"-l", "1",
		"-scale-to", "1024",
		"-singlefile",
		filePath, out,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm %s: %w - %s", filePath, err, strings.TrimSpace(stderr.String()))
	}

	return os.ReadFile(out + ".png")
}
