package store

import (
	"database/sql"
	"time"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(s rowScanner) (Media, error) {
	var m Media
	var enabled, updateMedia int
	var lastSync sql.NullInt64
	if err := s.Scan(&m.Name, &m.URL, &enabled, &updateMedia, &lastSync, &m.PackageCount); err != nil {
		return Media{}, err
	}
	m.Enabled = enabled != 0
	m.UpdateMedia = updateMedia != 0
	if lastSync.Valid {
		t := time.Unix(lastSync.Int64, 0).UTC()
		m.LastSync = &t
	}
	return m, nil
}
