package main

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes folioctl against dataDir and returns combined output.
func runCommand(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeCBZ writes a one-page comic archive to path.
func writeCBZ(t *testing.T, path string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 20), B: 90, A: 255})
		}
	}
	var page bytes.Buffer
	if err := png.Encode(&page, img); err != nil {
		t.Fatalf("encode page: %v", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("page1.png")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := fw.Write(page.Bytes()); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestUserCommands(t *testing.T) {
	dataDir := t.TempDir()

	t.Run("add", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "user", "add", "alice", "--password", "secret1", "--role", "admin")
		if err != nil {
			t.Fatalf("user add: %v", err)
		}
		if !strings.Contains(out, "Created user: alice (role: admin") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("duplicate add fails", func(t *testing.T) {
		_, err := runCommand(t, dataDir, "user", "add", "alice", "--password", "secret1")
		if err == nil {
			t.Fatal("expected error for duplicate username")
		}
	})

	t.Run("short password fails", func(t *testing.T) {
		_, err := runCommand(t, dataDir, "user", "add", "bob", "--password", "tiny")
		if err == nil {
			t.Fatal("expected error for short password")
		}
	})

	t.Run("list", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "user", "list")
		if err != nil {
			t.Fatalf("user list: %v", err)
		}
		if !strings.Contains(out, "USERNAME") || !strings.Contains(out, "alice") {
			t.Errorf("list missing user: %q", out)
		}
		if !strings.Contains(out, "never") {
			t.Errorf("expected never-logged-in marker: %q", out)
		}
	})

	t.Run("passwd", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "user", "passwd", "alice", "--password", "changed1")
		if err != nil {
			t.Fatalf("user passwd: %v", err)
		}
		if !strings.Contains(out, "Password changed for: alice") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("passwd unknown user", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "user", "passwd", "ghost", "--password", "whatever1")
		if err != nil {
			t.Fatalf("user passwd: %v", err)
		}
		if !strings.Contains(out, "User not found: ghost") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("del", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "user", "del", "alice")
		if err != nil {
			t.Fatalf("user del: %v", err)
		}
		if !strings.Contains(out, "Deleted user: alice") {
			t.Errorf("unexpected output: %q", out)
		}

		out, err = runCommand(t, dataDir, "user", "list")
		if err != nil {
			t.Fatalf("user list: %v", err)
		}
		if !strings.Contains(out, "No users found.") {
			t.Errorf("expected empty list: %q", out)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	dataDir := t.TempDir()
	bookDir := t.TempDir()

	t.Run("add", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "library", "add", "shelf", bookDir)
		if err != nil {
			t.Fatalf("library add: %v", err)
		}
		if !strings.Contains(out, "Added library: shelf -> ") {
			t.Errorf("unexpected output: %q", out)
		}
		if !strings.Contains(out, "(public: false)") {
			t.Errorf("expected private default: %q", out)
		}
	})

	t.Run("add missing path", func(t *testing.T) {
		_, err := runCommand(t, dataDir, "library", "add", "nope", filepath.Join(bookDir, "missing"))
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Fatalf("expected missing-path error, got %v", err)
		}
	})

	t.Run("add file path", func(t *testing.T) {
		file := filepath.Join(bookDir, "plain.txt")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := runCommand(t, dataDir, "library", "add", "nope", file)
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Fatalf("expected not-a-directory error, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "library", "list")
		if err != nil {
			t.Fatalf("library list: %v", err)
		}
		if !strings.Contains(out, "shelf") || !strings.Contains(out, "PUBLIC") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("del", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "library", "del", "shelf")
		if err != nil {
			t.Fatalf("library del: %v", err)
		}
		if !strings.Contains(out, "Deleted library: shelf") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("del unknown", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "library", "del", "shelf")
		if err != nil {
			t.Fatalf("library del: %v", err)
		}
		if !strings.Contains(out, "Library not found: shelf") {
			t.Errorf("unexpected output: %q", out)
		}
	})
}

func TestScanCommand(t *testing.T) {
	dataDir := t.TempDir()

	t.Run("no libraries", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "scan")
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if !strings.Contains(out, "No libraries to scan.") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	bookDir := t.TempDir()
	writeCBZ(t, filepath.Join(bookDir, "Solaris.cbz"))
	if _, err := runCommand(t, dataDir, "library", "add", "shelf", bookDir); err != nil {
		t.Fatalf("library add: %v", err)
	}

	t.Run("indexes books", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "scan", "--workers", "1")
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if !strings.Contains(out, "Scanning library: shelf (") {
			t.Errorf("missing library line: %q", out)
		}
		if !strings.Contains(out, "Scan complete: 1 books in ") {
			t.Errorf("missing summary: %q", out)
		}
	})

	t.Run("named library", func(t *testing.T) {
		out, err := runCommand(t, dataDir, "scan", "shelf", "--workers", "1")
		if err != nil {
			t.Fatalf("scan shelf: %v", err)
		}
		if !strings.Contains(out, "Scan complete: 1 books in ") {
			t.Errorf("missing summary: %q", out)
		}
	})

	t.Run("unknown library", func(t *testing.T) {
		_, err := runCommand(t, dataDir, "scan", "attic")
		if err == nil {
			t.Fatal("expected error for unknown library")
		}
	})
}

func TestStatsCommand(t *testing.T) {
	dataDir := t.TempDir()
	bookDir := t.TempDir()
	writeCBZ(t, filepath.Join(bookDir, "Dune.cbz"))

	if _, err := runCommand(t, dataDir, "library", "add", "shelf", bookDir); err != nil {
		t.Fatalf("library add: %v", err)
	}
	if _, err := runCommand(t, dataDir, "scan", "--workers", "1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := runCommand(t, dataDir, "user", "add", "alice", "--password", "secret1"); err != nil {
		t.Fatalf("user add: %v", err)
	}

	out, err := runCommand(t, dataDir, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{
		"Books:      1",
		"Libraries:  1",
		"Users:      1",
		"Formats:    cbz: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestResolveDataDir(t *testing.T) {
	// Persistent flags merge into Flags() during parsing, so each case
	// parses before resolving.
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("DATA_DIR", "/from/env")
		root := newRootCmd()
		if err := root.ParseFlags([]string{"--data-dir", "/from/flag"}); err != nil {
			t.Fatal(err)
		}
		if got := resolveDataDir(root); got != "/from/flag" {
			t.Errorf("resolveDataDir() = %q, want /from/flag", got)
		}
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("DATA_DIR", "/from/env")
		root := newRootCmd()
		if err := root.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}
		if got := resolveDataDir(root); got != "/from/env" {
			t.Errorf("resolveDataDir() = %q, want /from/env", got)
		}
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("DATA_DIR", "")
		root := newRootCmd()
		if err := root.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}
		if got := resolveDataDir(root); got != defaultDataDir {
			t.Errorf("resolveDataDir() = %q, want %q", got, defaultDataDir)
		}
	})
}
