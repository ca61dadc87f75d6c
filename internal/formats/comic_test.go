package formats

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNaturalCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{
			name: "simple numeric order",
			a:    "page1.jpg",
			b:    "page2.jpg",
			want: -1,
		},
		{
			name: "two digit beats one digit",
			a:    "page2.jpg",
			b:    "page10.jpg",
			want: -1,
		},
		{
			name: "reversed",
			a:    "page10.jpg",
			b:    "page2.jpg",
			want: 1,
		},
		{
			name: "equal",
			a:    "page7.png",
			b:    "page7.png",
			want: 0,
		},
		{
			name: "case insensitive",
			a:    "Page2.jpg",
			b:    "page10.jpg",
			want: -1,
		},
		{
			name: "prefix sorts first",
			a:    "page",
			b:    "page1",
			want: -1,
		},
		{
			name: "leading zeros compare numerically",
			a:    "003.png",
			b:    "12.png",
			want: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := naturalCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("naturalCompare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseComicFilename(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantSeries string
		wantIndex  float64
		wantOK     bool
	}{
		{
			name:       "volume marker",
			filename:   "One Piece v01",
			wantSeries: "One Piece",
			wantIndex:  1,
			wantOK:     true,
		},
		{
			name:       "vol abbreviation",
			filename:   "Berserk Vol. 2",
			wantSeries: "Berserk",
			wantIndex:  2,
			wantOK:     true,
		},
		{
			name:       "issue number",
			filename:   "Spider-Man #123",
			wantSeries: "Spider-Man",
			wantIndex:  123,
			wantOK:     true,
		},
		{
			name:       "dash separator",
			filename:   "X-Men - 015",
			wantSeries: "X-Men",
			wantIndex:  15,
			wantOK:     true,
		},
		{
			name:       "bare trailing number",
			filename:   "Akira 3",
			wantSeries: "Akira",
			wantIndex:  3,
			wantOK:     true,
		},
		{
			name:       "decimal index",
			filename:   "Nausicaa v2.5",
			wantSeries: "Nausicaa",
			wantIndex:  2.5,
			wantOK:     true,
		},
		{
			name:     "no number",
			filename: "Watchmen",
			wantOK:   false,
		},
		{
			name:     "number only",
			filename: "v01",
			wantOK:   false,
		},
		{
			name:     "empty",
			filename: "",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, index, ok := parseComicFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseComicFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if series != tt.wantSeries {
				t.Errorf("series = %q, want %q", series, tt.wantSeries)
			}
			if index != tt.wantIndex {
				t.Errorf("index = %v, want %v", index, tt.wantIndex)
			}
		})
	}
}

func TestComicExtract(t *testing.T) {
	dir := t.TempDir()
	cbzPath := filepath.Join(dir, "Space Saga v03.cbz")

	firstPage := makeJPEG(t)
	writeZipFile(t, cbzPath, []zipEntry{
		{name: "page10.png", data: makePNG(t)},
		{name: "page2.png", data: makePNG(t)},
		{name: "page1.jpg", data: firstPage},
		{name: "info.txt", data: []byte("not a page")},
		{name: "__MACOSX/._page1.jpg", data: []byte{0x00}},
		{name: ".hidden.png", data: makePNG(t)},
	})

	meta, err := HandlerFor(FormatCBZ).Extract(context.Background(), cbzPath)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if meta.Title != "Space Saga v03" {
		t.Errorf("Title = %q, want %q", meta.Title, "Space Saga v03")
	}
	if meta.Series != "Space Saga" {
		t.Errorf("Series = %q, want %q", meta.Series, "Space Saga")
	}
	if meta.SeriesIndex != 3 {
		t.Errorf("SeriesIndex = %v, want 3", meta.SeriesIndex)
	}
	if meta.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", meta.PageCount)
	}
	if len(meta.Cover) == 0 {
		t.Fatal("expected cover from first page")
	}
	if !bytes.HasPrefix(meta.Cover, pngMagic) {
		t.Error("expected cover converted to PNG")
	}
}

func TestComicExtractSkipsUndecodablePages(t *testing.T) {
	dir := t.TempDir()
	cbzPath := filepath.Join(dir, "issue.cbz")

	goodPage := makePNG(t)
	writeZipFile(t, cbzPath, []zipEntry{
		// Sorts first but cannot be decoded, cover must come from page 2.
		{name: "page1.jxl", data: []byte{0xFF, 0x0A, 0x00, 0x01}},
		{name: "page2.png", data: goodPage},
	})

	meta, err := HandlerFor(FormatCBZ).Extract(context.Background(), cbzPath)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if meta.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", meta.PageCount)
	}
	if !bytes.Equal(meta.Cover, goodPage) {
		t.Error("expected cover from the first decodable page")
	}
}

func TestComicExtractNotZip(t *testing.T) {
	dir := t.TempDir()
	cbrPath := filepath.Join(dir, "Old Series #7.cbr")
	if err := os.WriteFile(cbrPath, []byte("Rar!\x1a\x07\x00 pretend rar data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	meta, err := HandlerFor(FormatCBR).Extract(context.Background(), cbrPath)
	if err != nil {
		t.Fatalf("Extract() should degrade, got error %v", err)
	}

	if meta.Title != "Old Series #7" {
		t.Errorf("Title = %q, want %q", meta.Title, "Old Series #7")
	}
	if meta.Series != "Old Series" {
		t.Errorf("Series = %q, want %q", meta.Series, "Old Series")
	}
	if meta.SeriesIndex != 7 {
		t.Errorf("SeriesIndex = %v, want 7", meta.SeriesIndex)
	}
	if meta.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0", meta.PageCount)
	}
	if meta.Cover != nil {
		t.Error("expected no cover")
	}
}

func TestComicExtractEmptyArchive(t *testing.T) {
	dir := t.TempDir()
	cbzPath := filepath.Join(dir, "empty.cbz")
	writeZipFile(t, cbzPath, []zipEntry{
		{name: "readme.txt", data: []byte("no pages here")},
	})

	meta, err := HandlerFor(FormatCBZ).Extract(context.Background(), cbzPath)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if meta.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0", meta.PageCount)
	}
	if meta.Cover != nil {
		t.Error("expected no cover for archive without pages")
	}
}
