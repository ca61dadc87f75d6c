package database

import (
	"context"
	"testing"
)

func TestUpsertDeviceKeepsIdentity(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	u := seedUser(t, d, "alice")

	dev := &Device{ID: "kobo-1", UserID: u.ID, Name: "Kobo Libra", Model: "N873"}
	if err := d.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if dev.LastSeen == 0 {
		t.Error("LastSeen not stamped")
	}

	// Sync requests usually carry only the device id; the stored name and
	// model must survive such a bare re-registration.
	bare := &Device{ID: "kobo-1", UserID: u.ID}
	if err := d.UpsertDevice(ctx, bare); err != nil {
		t.Fatalf("UpsertDevice(bare): %v", err)
	}

	list, err := d.ListDevices(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d devices, want 1", len(list))
	}
	if list[0].Name != "Kobo Libra" || list[0].Model != "N873" {
		t.Errorf("identity lost on bare upsert: %+v", list[0])
	}
}

func TestTouchDevice(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	u := seedUser(t, d, "alice")

	dev := &Device{ID: "kindle-1", UserID: u.ID, Name: "Kindle"}
	if err := d.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	// Backdate, then touch must bring last_seen forward again.
	if _, err := d.db.Exec(`UPDATE devices SET last_seen = 1 WHERE id = 'kindle-1'`); err != nil {
		t.Fatalf("backdating: %v", err)
	}
	if err := d.TouchDevice(ctx, "kindle-1", u.ID); err != nil {
		t.Fatalf("TouchDevice: %v", err)
	}

	list, err := d.ListDevices(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if list[0].LastSeen <= 1 {
		t.Errorf("LastSeen = %d, want refreshed", list[0].LastSeen)
	}
}

func TestListDevicesOrdering(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	u := seedUser(t, d, "alice")
	other := seedUser(t, d, "bob")

	for _, id := range []string{"old", "new", "mid"} {
		if err := d.UpsertDevice(ctx, &Device{ID: id, UserID: u.ID}); err != nil {
			t.Fatalf("UpsertDevice(%s): %v", id, err)
		}
	}
	if err := d.UpsertDevice(ctx, &Device{ID: "foreign", UserID: other.ID}); err != nil {
		t.Fatalf("UpsertDevice(foreign): %v", err)
	}

	// Upserts in one test run land in the same second; set distinct times.
	for id, ts := range map[string]int64{"old": 100, "mid": 200, "new": 300} {
		if _, err := d.db.Exec(`UPDATE devices SET last_seen = ? WHERE id = ?`, ts, id); err != nil {
			t.Fatalf("setting last_seen(%s): %v", id, err)
		}
	}

	list, err := d.ListDevices(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(list) != len(want) {
		t.Fatalf("got %d devices, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}
