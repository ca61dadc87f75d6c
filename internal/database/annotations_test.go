package database

import (
	"context"
	"testing"
)

func TestSaveHighlightMutableSet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	lib := seedLibrary(t, d, "main")
	b := seedBook(t, d, lib.ID, "novel")
	u := seedUser(t, d, "alice")

	h := &Highlight{
		ID:        "h1",
		UserID:    u.ID,
		BookID:    b.ID,
		DeviceID:  "kobo",
		Page:      12,
		Chapter:   "Two",
		Text:      "the original quotation",
		Pos0:      "/body/p[3]",
		Pos1:      "/body/p[4]",
		CreatedAt: 100,
		UpdatedAt: 100,
	}
	if err := d.SaveHighlight(ctx, h); err != nil {
		t.Fatalf("SaveHighlight: %v", err)
	}

	// A re-send may edit the note and color; everything else is fixed at
	// insert even when the client claims otherwise.
	edit := &Highlight{
		ID:        "h1",
		UserID:    u.ID,
		BookID:    b.ID,
		Page:      99,
		Text:      "tampered text",
		Note:      "my thought",
		Color:     "blue",
		Pos0:      "/elsewhere",
		CreatedAt: 100,
		UpdatedAt: 200,
	}
	if err := d.SaveHighlight(ctx, edit); err != nil {
		t.Fatalf("SaveHighlight(edit): %v", err)
	}

	list, err := d.GetHighlights(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("GetHighlights: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d highlights, want 1", len(list))
	}
	got := list[0]
	if got.Note != "my thought" || got.Color != "blue" || got.UpdatedAt != 200 {
		t.Errorf("mutable fields not updated: %+v", got)
	}
	if got.Text != "the original quotation" {
		t.Errorf("Text = %q, want original preserved", got.Text)
	}
	if got.Page != 12 || got.Pos0 != "/body/p[3]" {
		t.Errorf("position changed on upsert: page %d pos0 %q", got.Page, got.Pos0)
	}
}

func TestGetHighlightsOrdering(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	lib := seedLibrary(t, d, "main")
	b := seedBook(t, d, lib.ID, "novel")
	u := seedUser(t, d, "alice")

	highlights := []Highlight{
		{ID: "late", UserID: u.ID, BookID: b.ID, Page: 40, Text: "d", CreatedAt: 400},
		{ID: "early-second", UserID: u.ID, BookID: b.ID, Page: 5, Text: "b", CreatedAt: 200},
		{ID: "early-first", UserID: u.ID, BookID: b.ID, Page: 5, Text: "a", CreatedAt: 100},
		{ID: "mid", UserID: u.ID, BookID: b.ID, Page: 20, Text: "c", CreatedAt: 50},
	}
	for i := range highlights {
		if err := d.SaveHighlight(ctx, &highlights[i]); err != nil {
			t.Fatalf("SaveHighlight(%s): %v", highlights[i].ID, err)
		}
	}

	list, err := d.GetHighlights(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("GetHighlights: %v", err)
	}
	want := []string{"early-first", "early-second", "mid", "late"}
	if len(list) != len(want) {
		t.Fatalf("got %d highlights, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}

func TestDeleteHighlightScopedToOwner(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	lib := seedLibrary(t, d, "main")
	b := seedBook(t, d, lib.ID, "novel")
	owner := seedUser(t, d, "alice")
	stranger := seedUser(t, d, "mallory")

	h := &Highlight{ID: "h1", UserID: owner.ID, BookID: b.ID, Text: "mine"}
	if err := d.SaveHighlight(ctx, h); err != nil {
		t.Fatalf("SaveHighlight: %v", err)
	}

	ok, err := d.DeleteHighlight(ctx, "h1", stranger.ID)
	if err != nil {
		t.Fatalf("DeleteHighlight(stranger): %v", err)
	}
	if ok {
		t.Error("stranger deleted another user's highlight")
	}
	if list, _ := d.GetHighlights(ctx, owner.ID, b.ID); len(list) != 1 {
		t.Error("highlight removed by non-owner")
	}

	ok, err = d.DeleteHighlight(ctx, "h1", owner.ID)
	if err != nil {
		t.Fatalf("DeleteHighlight(owner): %v", err)
	}
	if !ok {
		t.Error("owner could not delete their highlight")
	}
}

func TestSaveBookmarkMutableSet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	lib := seedLibrary(t, d, "main")
	b := seedBook(t, d, lib.ID, "novel")
	u := seedUser(t, d, "alice")

	bm := &Bookmark{
		ID:           "bm1",
		UserID:       u.ID,
		BookID:       b.ID,
		Page:         33,
		PositionData: `{"xpointer":"p33"}`,
		Name:         "chapter start",
		CreatedAt:    100,
	}
	if err := d.SaveBookmark(ctx, bm); err != nil {
		t.Fatalf("SaveBookmark: %v", err)
	}

	rename := &Bookmark{
		ID:           "bm1",
		UserID:       u.ID,
		BookID:       b.ID,
		Page:         77,
		PositionData: `{"xpointer":"moved"}`,
		Name:         "renamed",
		CreatedAt:    999,
	}
	if err := d.SaveBookmark(ctx, rename); err != nil {
		t.Fatalf("SaveBookmark(rename): %v", err)
	}

	list, err := d.GetBookmarks(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("GetBookmarks: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d bookmarks, want 1", len(list))
	}
	got := list[0]
	if got.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", got.Name)
	}
	if got.Page != 33 || got.PositionData != `{"xpointer":"p33"}` || got.CreatedAt != 100 {
		t.Errorf("immutable fields changed: %+v", got)
	}
}

func TestDeleteBookmark(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	lib := seedLibrary(t, d, "main")
	b := seedBook(t, d, lib.ID, "novel")
	u := seedUser(t, d, "alice")

	if err := d.SaveBookmark(ctx, &Bookmark{ID: "bm1", UserID: u.ID, BookID: b.ID, Page: 1}); err != nil {
		t.Fatalf("SaveBookmark: %v", err)
	}

	ok, err := d.DeleteBookmark(ctx, "bm1", u.ID)
	if err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}
	if !ok {
		t.Error("DeleteBookmark returned false for existing bookmark")
	}

	ok, err = d.DeleteBookmark(ctx, "bm1", u.ID)
	if err != nil {
		t.Fatalf("second DeleteBookmark: %v", err)
	}
	if ok {
		t.Error("DeleteBookmark returned true for missing bookmark")
	}
}
