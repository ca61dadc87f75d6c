package placeholder

import (
	"bytes"
	"image/color"
	"testing"

	"folio/internal/database"

	"github.com/disintegration/imaging"
)

func testCover(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(120, 180, color.NRGBA{R: 200, G: 180, B: 160, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encoding test cover: %v", err)
	}
	return buf.Bytes()
}

func TestGenerate(t *testing.T) {
	book := &database.Book{
		ID:          "b4f9a8d2-3c1e-5a7b-9f0d-2e6c8a4b1d3f",
		Title:       "Test Book",
		Authors:     []string{"First Author", "Second Author"},
		Description: "A short description.",
	}

	data, err := Generate(book, testCover(t), Options{Width: 60, Quality: 80})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !bytes.HasPrefix(data, []byte("%PDF-1.5")) {
		t.Errorf("output does not start with PDF header: %q", data[:16])
	}
	if !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Error("output does not end with EOF marker")
	}

	for _, want := range []string{
		"/DCTDecode",
		"/MediaBox [0 0 60 90]",
		"(Test Book)",
		"(First Author, Second Author)",
		"(cloudreader,placeholder," + book.ID + ")",
		"/Root",
		"/Info",
	} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestGenerateNoAuthors(t *testing.T) {
	book := &database.Book{ID: "x", Title: "Anonymous Work"}

	data, err := Generate(book, testCover(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Contains(data, []byte("(Unknown)")) {
		t.Error("missing Unknown author fallback")
	}
	// DefaultWidth upscales the 120px cover to 600px wide.
	if !bytes.Contains(data, []byte("/MediaBox [0 0 600 900]")) {
		t.Error("missing default-width MediaBox")
	}
}

func TestGenerateBadCover(t *testing.T) {
	book := &database.Book{ID: "x", Title: "T"}
	if _, err := Generate(book, []byte("not an image"), DefaultOptions()); err == nil {
		t.Fatal("expected error for undecodable cover")
	}
}

func TestGenerateLongDescription(t *testing.T) {
	long := make([]byte, 0, 700)
	for i := 0; i < 700; i++ {
		long = append(long, 'd')
	}
	book := &database.Book{ID: "x", Title: "T", Description: string(long)}

	data, err := Generate(book, testCover(t), Options{Width: 60, Quality: 80})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Contains(data, long) {
		t.Error("description was not truncated")
	}
	if !bytes.Contains(data, []byte("...)")) {
		t.Error("truncated description missing ellipsis")
	}
}

func TestPDFString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello", "(Hello)"},
		{"parens escaped", "a(b)c", `(a\(b\)c)`},
		{"backslash escaped", `a\b`, `(a\\b)`},
		{"unicode goes hex", "café", "<FEFF00630061006600E9>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pdfString(tt.input); got != tt.want {
				t.Errorf("pdfString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short unchanged", "abc", 10, "abc"},
		{"exact boundary", "abcdef", 3, "abc"},
		{"multibyte not split", "aé", 2, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateUTF8(tt.input, tt.n); got != tt.want {
				t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
