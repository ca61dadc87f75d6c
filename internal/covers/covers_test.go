package covers

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/formats"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()

	dir := t.TempDir()
	c, err := New(dir, 200, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, dir
}

// makeTestPNG returns a w x h PNG with a simple gradient fill.
func makeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// writeCBZ writes a one-page comic archive to path.
func writeCBZ(t *testing.T, path string, page []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("page1.png")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := fw.Write(page); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func decodeBounds(t *testing.T, data []byte) image.Rectangle {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img.Bounds()
}

func TestDefaultCover(t *testing.T) {
	first := Default("The Left Hand of Darkness")
	second := Default("The Left Hand of Darkness")

	if !bytes.HasPrefix(first, pngMagic) {
		t.Fatal("expected PNG output")
	}
	if !bytes.Equal(first, second) {
		t.Error("expected deterministic output for the same title")
	}

	bounds := decodeBounds(t, first)
	if bounds.Dx() != defaultCoverWidth || bounds.Dy() != defaultCoverHeight {
		t.Errorf("bounds = %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), defaultCoverWidth, defaultCoverHeight)
	}

	// "A" and "B" land on adjacent hues, so the pixels must differ.
	if bytes.Equal(Default("A"), Default("B")) {
		t.Error("expected different titles to produce different covers")
	}
}

func TestDefaultCoverEmptyTitle(t *testing.T) {
	data := Default("")
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatal("expected PNG output for empty title")
	}
	bounds := decodeBounds(t, data)
	if bounds.Dx() != defaultCoverWidth || bounds.Dy() != defaultCoverHeight {
		t.Errorf("bounds = %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), defaultCoverWidth, defaultCoverHeight)
	}
}

func TestGetServesCachedFile(t *testing.T) {
	c, _ := newTestCache(t)

	// A pre-existing cache file is served even when the book file is gone.
	want := []byte("cached-cover-bytes")
	if err := os.WriteFile(c.coverPath("b1"), want, 0o644); err != nil {
		t.Fatalf("seed cache file: %v", err)
	}

	book := &database.Book{ID: "b1", Path: "/gone/missing.cbz", Format: formats.FormatCBZ}
	got, err := c.Get(context.Background(), book)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("expected cached bytes to be served verbatim")
	}
}

func TestGetExtractsAndCaches(t *testing.T) {
	c, dir := newTestCache(t)

	cbzPath := filepath.Join(dir, "Space Saga v01.cbz")
	writeCBZ(t, cbzPath, makeTestPNG(t, 40, 60))

	book := &database.Book{ID: "b2", Path: cbzPath, Format: formats.FormatCBZ}
	got, err := c.Get(context.Background(), book)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.HasPrefix(got, pngMagic) {
		t.Fatal("expected extracted cover as PNG")
	}

	cached, err := os.ReadFile(c.coverPath("b2"))
	if err != nil {
		t.Fatalf("expected cover cached on disk: %v", err)
	}
	if !bytes.Equal(cached, got) {
		t.Error("cache file differs from returned cover")
	}

	// Deleting the book file must not matter anymore.
	if err := os.Remove(cbzPath); err != nil {
		t.Fatalf("remove book file: %v", err)
	}
	again, err := c.Get(context.Background(), book)
	if err != nil {
		t.Fatalf("Get() after removal error = %v", err)
	}
	if !bytes.Equal(again, got) {
		t.Error("expected cover served from cache after source removal")
	}
}

func TestGetNoCover(t *testing.T) {
	c, dir := newTestCache(t)

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	book := &database.Book{ID: "b3", Path: txtPath, Format: formats.FormatTXT}
	_, err := c.Get(context.Background(), book)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGetExtractionFailure(t *testing.T) {
	c, _ := newTestCache(t)

	book := &database.Book{ID: "b4", Path: "/gone/missing.cbz", Format: formats.FormatCBZ}
	_, err := c.Get(context.Background(), book)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPut(t *testing.T) {
	c, _ := newTestCache(t)

	want := makeTestPNG(t, 10, 15)
	if err := c.Put("b5", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	book := &database.Book{ID: "b5", Path: "/irrelevant", Format: formats.FormatEPUB}
	got, err := c.Get(context.Background(), book)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("expected Put bytes back from Get")
	}
}

func TestThumbnail(t *testing.T) {
	c, dir := newTestCache(t)

	// 600x900 source fits the 200x400 thumbnail box at 200x300.
	cbzPath := filepath.Join(dir, "tall.cbz")
	writeCBZ(t, cbzPath, makeTestPNG(t, 600, 900))

	book := &database.Book{ID: "b6", Path: cbzPath, Format: formats.FormatCBZ}
	thumb, err := c.Thumbnail(context.Background(), book)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}

	bounds := decodeBounds(t, thumb)
	if bounds.Dx() != 200 || bounds.Dy() != 300 {
		t.Errorf("thumbnail = %dx%d, want 200x300", bounds.Dx(), bounds.Dy())
	}

	if _, err := os.Stat(c.thumbPath("b6")); err != nil {
		t.Errorf("expected thumbnail cached on disk: %v", err)
	}

	again, err := c.Thumbnail(context.Background(), book)
	if err != nil {
		t.Fatalf("Thumbnail() second call error = %v", err)
	}
	if !bytes.Equal(again, thumb) {
		t.Error("expected cached thumbnail on second call")
	}
}

func TestThumbnailNoCover(t *testing.T) {
	c, dir := newTestCache(t)

	txtPath := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(txtPath, []byte("text"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	book := &database.Book{ID: "b7", Path: txtPath, Format: formats.FormatTXT}
	_, err := c.Thumbnail(context.Background(), book)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Thumbnail() error = %v, want ErrNotFound", err)
	}
}
