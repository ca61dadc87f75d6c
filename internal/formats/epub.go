package formats

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"folio/internal/apperr"
	"folio/internal/logging"
)

// containerPath locates the OCF container descriptor inside an EPUB.
const containerPath = "META-INF/container.xml"

// epubContainer mirrors META-INF/container.xml, which points at the OPF
// package document.
type epubContainer struct {
	XMLName   xml.Name       `xml:"container"`
	Rootfiles []epubRootfile `xml:"rootfiles>rootfile"`
}

type epubRootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// opfPackage mirrors the subset of the OPF package document we read.
// Dublin Core elements are matched by local name, so the dc: prefix
// does not matter.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
}

type opfMetadata struct {
	Title       string          `xml:"title"`
	Creators    []string        `xml:"creator"`
	Description string          `xml:"description"`
	Publisher   string          `xml:"publisher"`
	Date        string          `xml:"date"`
	Language    string          `xml:"language"`
	Subjects    []string        `xml:"subject"`
	Identifiers []opfIdentifier `xml:"identifier"`
	Metas       []opfMeta       `xml:"meta"`
}

type opfIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// epubHandler parses EPUB containers: a ZIP archive holding an OPF
// package document with Dublin Core metadata.
type epubHandler struct{}

func (epubHandler) Extract(_ context.Context, filePath string) (*Metadata, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open epub %s: %w", filePath, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			logging.Warn("failed to close epub %s: %v", filePath, err)
		}
	}()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	opfPath, err := findOPFPath(files)
	if err != nil {
		return nil, err
	}

	opfFile, ok := files[opfPath]
	if !ok {
		return nil, fmt.Errorf("%w: rootfile %s missing from archive", apperr.ErrInvalidFormat, opfPath)
	}

	data, err := readArchiveFile(opfFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opfPath, err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", apperr.ErrInvalidFormat, opfPath, err)
	}

	meta := metadataFromOPF(&pkg)
	if meta.Title == "" {
		meta.Title = fileStem(filePath)
	}

	if href := coverHref(&pkg); href != "" {
		meta.Cover = extractEPUBCover(files, opfPath, href)
	}

	return meta, nil
}

// findOPFPath reads the container descriptor and returns the path of
// the first declared rootfile.
func findOPFPath(files map[string]*zip.File) (string, error) {
	f, ok := files[containerPath]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", apperr.ErrInvalidFormat, containerPath)
	}

	data, err := readArchiveFile(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", containerPath, err)
	}

	var container epubContainer
	if err := xml.Unmarshal(data, &container); err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", apperr.ErrInvalidFormat, containerPath, err)
	}

	for _, rf := range container.Rootfiles {
		if rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}
	return "", fmt.Errorf("%w: no rootfile declared in %s", apperr.ErrInvalidFormat, containerPath)
}

// metadataFromOPF maps OPF package metadata onto a Metadata value.
func metadataFromOPF(pkg *opfPackage) *Metadata {
	m := &Metadata{
		Title:       strings.TrimSpace(pkg.Metadata.Title),
		Description: strings.TrimSpace(pkg.Metadata.Description),
		Publisher:   strings.TrimSpace(pkg.Metadata.Publisher),
		Published:   strings.TrimSpace(pkg.Metadata.Date),
		Language:    strings.TrimSpace(pkg.Metadata.Language),
	}

	for _, creator := range pkg.Metadata.Creators {
		if c := strings.TrimSpace(creator); c != "" {
			m.Authors = append(m.Authors, c)
		}
	}

	for _, subject := range pkg.Metadata.Subjects {
		if s := strings.TrimSpace(subject); s != "" {
			m.Tags = append(m.Tags, s)
		}
	}

	for _, id := range pkg.Metadata.Identifiers {
		if v := strings.TrimSpace(id.Value); v != "" && isISBN(id.Scheme, v) {
			m.ISBN = v
			break
		}
	}

	for _, opfm := range pkg.Metadata.Metas {
		switch opfm.Name {
		case "calibre:series":
			m.Series = strings.TrimSpace(opfm.Content)
		case "calibre:series_index":
			if idx, err := strconv.ParseFloat(strings.TrimSpace(opfm.Content), 64); err == nil {
				m.SeriesIndex = idx
			}
		}
	}

	return m
}

// isISBN reports whether an OPF identifier looks like an ISBN: an
// explicit scheme attribute, a 978/979 prefix, or 10/13 characters.
func isISBN(scheme, value string) bool {
	if strings.EqualFold(scheme, "ISBN") {
		return true
	}
	return strings.HasPrefix(value, "978") ||
		strings.HasPrefix(value, "979") ||
		len(value) == 10 ||
		len(value) == 13
}

// coverHref resolves the cover image href. The meta name="cover" id is
// authoritative; otherwise fall back to any manifest image whose href
// mentions "cover".
func coverHref(pkg *opfPackage) string {
	var coverID string
	for _, m := range pkg.Metadata.Metas {
		if m.Name == "cover" && m.Content != "" {
			coverID = m.Content
			break
		}
	}

	if coverID != "" {
		for _, item := range pkg.Manifest.Items {
			if item.ID == coverID && item.Href != "" {
				return item.Href
			}
		}
	}

	for _, item := range pkg.Manifest.Items {
		href := strings.ToLower(item.Href)
		if strings.Contains(href, "cover") &&
			(strings.HasSuffix(href, ".jpg") || strings.HasSuffix(href, ".jpeg") || strings.HasSuffix(href, ".png")) {
			return item.Href
		}
	}

	return ""
}

// extractEPUBCover reads the cover image, trying the href relative to
// the OPF location first and the bare href second for flat archives.
// Returns nil when no candidate can be read and decoded.
func extractEPUBCover(files map[string]*zip.File, opfPath, href string) []byte {
	candidates := []string{href}
	if dir := path.Dir(opfPath); dir != "." {
		candidates = []string{path.Join(dir, href), href}
	}

	for _, name := range candidates {
		f, ok := files[name]
		if !ok {
			continue
		}
		data, err := readArchiveFile(f)
		if err != nil {
			continue
		}
		cover, err := ensurePNG(data)
		if err != nil {
			logging.Debug("failed to convert epub cover %s: %v", name, err)
			continue
		}
		return cover
	}
	return nil
}

// pngMagic is the signature prefix of a PNG file.
var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// ensurePNG returns data unchanged when it is already PNG, otherwise
// decodes it and re-encodes as PNG.
func ensurePNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readArchiveFile reads a single archive entry into memory.
func readArchiveFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logging.Warn("failed to close archive entry %s: %v", f.Name, err)
		}
	}()
	return io.ReadAll(rc)
}
