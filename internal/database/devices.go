package database

import (
	"context"
	"database/sql"
	"time"
)

// UpsertDevice records a reader device and stamps last_seen. An empty name
// or model on a re-registration keeps the previous value, so a device that
// only identifies itself fully at first login is not blanked later.
func (d *Database) UpsertDevice(ctx context.Context, dev *Device) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_device", start, err) }()

	dev.LastSeen = time.Now().Unix()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, name, model, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = COALESCE(NULLIF(excluded.name, ''), devices.name),
			model = COALESCE(NULLIF(excluded.model, ''), devices.model),
			last_seen = excluded.last_seen`,
		dev.ID, dev.UserID, nullString(dev.Name), nullString(dev.Model),
		dev.LastSeen,
	)
	return err
}

// TouchDevice stamps last_seen for a device the user already registered.
// Unknown devices are ignored.
func (d *Database) TouchDevice(ctx context.Context, id, userID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_device", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = ? WHERE id = ? AND user_id = ?`,
		time.Now().Unix(), id, userID)
	return err
}

// ListDevices returns a user's devices, most recently seen first.
func (d *Database) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_devices", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT id, user_id, name, model, last_seen
		FROM devices WHERE user_id = ?
		ORDER BY last_seen DESC, id`,
		userID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var list []Device
	for rows.Next() {
		var (
			dev      Device
			name     sql.NullString
			model    sql.NullString
			lastSeen sql.NullInt64
		)
		if err = rows.Scan(&dev.ID, &dev.UserID, &name, &model,
			&lastSeen); err != nil {
			return nil, err
		}
		dev.Name = name.String
		dev.Model = model.String
		dev.LastSeen = lastSeen.Int64
		list = append(list, dev)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return list, nil
}
