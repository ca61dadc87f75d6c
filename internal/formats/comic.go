package formats

import (
	"archive/zip"
	"context"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"folio/internal/logging"

	// Comic page decoders beyond imaging's defaults
	_ "golang.org/x/image/webp" // WebP page support
)

// comicPageExtensions are the archive entry extensions treated as pages.
var comicPageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".jxl":  true,
}

// comicHandler reads CBZ, CBR and CB7 archives. Only ZIP containers can
// actually be opened; RAR and 7-Zip archives, and malformed files,
// degrade to filename-derived metadata instead of failing the file.
type comicHandler struct{}

func (comicHandler) Extract(_ context.Context, filePath string) (*Metadata, error) {
	meta := &Metadata{Title: fileStem(filePath)}
	if series, index, ok := parseComicFilename(meta.Title); ok {
		meta.Series = series
		meta.SeriesIndex = index
	}

	r, err := zip.OpenReader(filePath)
	if err != nil {
		logging.Debug("comic archive %s is not readable as zip: %v", filePath, err)
		return meta, nil
	}
	defer func() {
		if err := r.Close(); err != nil {
			logging.Warn("failed to close comic archive %s: %v", filePath, err)
		}
	}()

	pages := comicPages(r.File)
	meta.PageCount = len(pages)

	// The first decodable page doubles as the cover. JXL pages cannot
	// be decoded, so fall through to the next page.
	for _, f := range pages {
		data, err := readArchiveFile(f)
		if err != nil {
			continue
		}
		cover, err := ensurePNG(data)
		if err != nil {
			logging.Debug("cannot decode comic page %s in %s: %v", f.Name, filePath, err)
			continue
		}
		meta.Cover = cover
		break
	}

	return meta, nil
}

// comicPages filters archive entries down to pages, sorted in natural
// order so page2 comes before page10. macOS resource forks and dotfiles
// are skipped.
func comicPages(entries []*zip.File) []*zip.File {
	var pages []*zip.File
	for _, f := range entries {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(f.Name, "__MACOSX") || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		if comicPageExtensions[strings.ToLower(path.Ext(f.Name))] {
			pages = append(pages, f)
		}
	}

	sort.Slice(pages, func(i, j int) bool {
		return naturalCompare(pages[i].Name, pages[j].Name) < 0
	})

	return pages
}

// naturalCompare orders strings with embedded numbers numerically, so
// "page2" sorts before "page10". Non-digit runs compare case
// insensitively.
func naturalCompare(a, b string) int {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0

	for i < len(ar) && j < len(br) {
		if isASCIIDigit(ar[i]) && isASCIIDigit(br[j]) {
			ni, nj := i, j
			for ni < len(ar) && isASCIIDigit(ar[ni]) {
				ni++
			}
			for nj < len(br) && isASCIIDigit(br[nj]) {
				nj++
			}
			av, _ := strconv.ParseUint(string(ar[i:ni]), 10, 64)
			bv, _ := strconv.ParseUint(string(br[j:nj]), 10, 64)
			if av != bv {
				if av < bv {
					return -1
				}
				return 1
			}
			i, j = ni, nj
			continue
		}

		la, lb := unicode.ToLower(ar[i]), unicode.ToLower(br[j])
		if la != lb {
			if la < lb {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	switch {
	case i < len(ar):
		return 1
	case j < len(br):
		return -1
	}
	return 0
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// comicSeriesPatterns match "Series v01", "Series Vol. 1", "Series #12",
// "Series - 3" and "Series 4" style filename stems.
var comicSeriesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s*[vV](?:ol\.?\s*)?(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`^(.+?)\s*#(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`^(.+?)\s*-\s*(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`^(.+?)\s+(\d+(?:\.\d+)?)$`),
}

// parseComicFilename guesses series name and issue number from a comic
// filename stem.
func parseComicFilename(name string) (string, float64, bool) {
	name = strings.TrimSpace(name)

	for _, pattern := range comicSeriesPatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		series := strings.TrimRight(strings.TrimSpace(m[1]), " -#")
		if series == "" {
			continue
		}

		index, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		return series, index, true
	}

	return "", 0, false
}
