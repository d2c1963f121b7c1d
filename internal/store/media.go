package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Media is a configured media's descriptor: mirror URL, enabled state,
// and sync bookkeeping.
type Media struct {
	Name         string
	URL          string
	Enabled      bool
	UpdateMedia  bool
	LastSync     *time.Time
	PackageCount int
}

// ListMedia returns every media row, ordered by name.
func (d *DB) ListMedia() ([]Media, error) {
	rows, err := d.sql.Query(`SELECT name, url, enabled, update_media, last_sync, package_count FROM media ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list media: %w", err)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMedia returns the media row for name, or (Media{}, false, nil) if absent.
func (d *DB) GetMedia(name string) (Media, bool, error) {
	row := d.sql.QueryRow(`SELECT name, url, enabled, update_media, last_sync, package_count FROM media WHERE name = ?`, name)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return Media{}, false, nil
	}
	if err != nil {
		return Media{}, false, fmt.Errorf("store: get media %s: %w", name, err)
	}
	return m, true, nil
}

// AddMedia creates a new media descriptor. Enabled defaults to true.
func (d *DB) AddMedia(name, url string, updateMedia bool) error {
	_, err := d.sql.Exec(
		`INSERT INTO media (name, url, enabled, update_media, package_count) VALUES (?, ?, 1, ?, 0)`,
		name, url, boolToInt(updateMedia),
	)
	if err != nil {
		return fmt.Errorf("store: add media %s: %w", name, err)
	}
	return nil
}

// SetMediaEnabled toggles a media's enabled flag.
func (d *DB) SetMediaEnabled(name string, enabled bool) error {
	res, err := d.sql.Exec(`UPDATE media SET enabled = ? WHERE name = ?`, boolToInt(enabled), name)
	if err != nil {
		return fmt.Errorf("store: set media enabled %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: media %s not found", name)
	}
	return nil
}

// ReplaceMediaPackages wholesale-replaces every package row for a media
// ("rows are replaced wholesale per media resync") and updates
// package_count and last_sync (to syncedAt) in the same transaction.
func (d *DB) ReplaceMediaPackages(mediaName string, pkgs []Package, syncedAt time.Time) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("store: replace packages %s: begin: %w", mediaName, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages WHERE media = ?`, mediaName); err != nil {
		return fmt.Errorf("store: replace packages %s: delete: %w", mediaName, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO packages (name, epoch, version, release, arch, url, filename, size, media, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: replace packages %s: prepare: %w", mediaName, err)
	}
	defer stmt.Close()

	for _, p := range pkgs {
		if _, err := stmt.Exec(p.Name, p.Epoch, p.Version, p.Release, p.Arch, p.URL, p.Filename, p.Size, mediaName, p.Summary); err != nil {
			return fmt.Errorf("store: replace packages %s: insert %s: %w", mediaName, p.Name, err)
		}
	}

	if _, err := tx.Exec(`UPDATE media SET package_count = ?, last_sync = ? WHERE name = ?`,
		len(pkgs), syncedAt.Unix(), mediaName); err != nil {
		return fmt.Errorf("store: replace packages %s: update media: %w", mediaName, err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
