package formats

import (
	"context"
	"strings"
)

// minimalHandler covers formats without a metadata parser. The title is
// derived from the filename with separator characters cleaned up.
type minimalHandler struct{}

func (minimalHandler) Extract(_ context.Context, filePath string) (*Metadata, error) {
	return &Metadata{Title: titleFromFilename(filePath)}, nil
}

// titleFromFilename turns "some_book.v2" into "some book v2".
func titleFromFilename(filePath string) string {
	stem := fileStem(filePath)
	cleaned := strings.NewReplacer("_", " ", ".", " ").Replace(stem)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "Unknown"
	}
	return cleaned
}
