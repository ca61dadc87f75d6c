// Package placeholder renders lightweight single-page PDF stand-ins for
// catalog books. Mirror-sync clients download these instead of the full
// files: the page is the cover image and the document Info dictionary
// carries the title, authors, description, and the book id in the
// Keywords field so a client can map a placeholder back to its book.
package placeholder

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"

	"folio/internal/database"

	"github.com/disintegration/imaging"
)

const (
	// DefaultWidth is the rendered cover width in pixels.
	DefaultWidth = 600
	// DefaultQuality is the JPEG quality for the embedded cover.
	DefaultQuality = 90

	maxSubjectLen = 500
)

// Options control placeholder rendering.
type Options struct {
	Width   int
	Quality int
}

// DefaultOptions returns the standard placeholder parameters.
func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Quality: DefaultQuality}
}

// Generate builds a one-page PDF for the book. The page is the cover
// scaled to opts.Width at one PDF point per pixel; cover must hold a
// decodable image.
func Generate(book *database.Book, cover []byte, opts Options) ([]byte, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	jpegData, width, height, err := resizeCover(cover, opts.Width, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("rendering placeholder cover: %w", err)
	}

	author := "Unknown"
	if len(book.Authors) > 0 {
		author = strings.Join(book.Authors, ", ")
	} else if book.Author != "" {
		author = book.Author
	}

	subject := book.Description
	if len(subject) > maxSubjectLen {
		subject = truncateUTF8(subject, maxSubjectLen-3) + "..."
	}

	doc := newPDF()
	catalog := doc.reserve()
	pages := doc.reserve()
	page := doc.reserve()
	contents := doc.reserve()
	image := doc.reserve()
	info := doc.reserve()

	doc.setObject(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	doc.setObject(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	doc.setObject(page, fmt.Sprintf(
		"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /XObject << /Im1 %d 0 R >> >> >>",
		pages, width, height, contents, image))

	content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im1 Do Q", width, height)
	doc.setStream(contents, "<< /Length %d >>", []byte(content))

	doc.setStream(image, fmt.Sprintf(
		"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %%d >>",
		width, height), jpegData)

	doc.setObject(info, fmt.Sprintf(
		"<< /Title %s /Author %s /Subject %s /Keywords %s /Creator %s /Producer %s >>",
		pdfString(book.Title),
		pdfString(author),
		pdfString(subject),
		pdfString("cloudreader,placeholder,"+book.ID),
		pdfString("CloudReader Placeholder"),
		pdfString("folio")))

	return doc.render(catalog, info), nil
}

// resizeCover scales the image to targetWidth preserving aspect ratio and
// re-encodes it as JPEG.
func resizeCover(data []byte, targetWidth, quality int) (jpegData []byte, w, h int, err error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding cover: %w", err)
	}

	resized := imaging.Resize(img, targetWidth, 0, imaging.Lanczos)
	bounds := resized.Bounds()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encoding cover: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// pdfString encodes text as a PDF string object. ASCII goes out as an
// escaped literal; anything else as a UTF-16BE hex string with BOM.
func pdfString(s string) string {
	ascii := true
	for _, r := range s {
		if r > 0x7E || r < 0x20 {
			ascii = false
			break
		}
	}
	if ascii {
		r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
		return "(" + r.Replace(s) + ")"
	}

	var b strings.Builder
	b.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	b.WriteString(">")
	return b.String()
}

// pdf accumulates numbered objects and renders the final file with its
// cross-reference table.
type pdf struct {
	objects [][]byte
}

func newPDF() *pdf {
	return &pdf{}
}

// reserve allocates the next object number. Object numbers start at 1.
func (p *pdf) reserve() int {
	p.objects = append(p.objects, nil)
	return len(p.objects)
}

func (p *pdf) setObject(num int, body string) {
	p.objects[num-1] = []byte(body)
}

// setStream stores a stream object. dictFormat must contain a single %d
// verb for the stream length.
func (p *pdf) setStream(num int, dictFormat string, data []byte) {
	var b bytes.Buffer
	fmt.Fprintf(&b, dictFormat, len(data))
	b.WriteString("\nstream\n")
	b.Write(data)
	b.WriteString("\nendstream")
	p.objects[num-1] = b.Bytes()
}

// render emits the header, body, xref table, and trailer.
func (p *pdf) render(rootNum, infoNum int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	// Binary marker so transports treat the file as binary.
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	offsets := make([]int, len(p.objects))
	for i, obj := range p.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj)
		buf.WriteString("\nendobj\n")
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(p.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\n",
		len(p.objects)+1, rootNum, infoNum)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefStart)

	return buf.Bytes()
}
