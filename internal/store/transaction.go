package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction is an audit row recording a sync or download event.
type Transaction struct {
	ID     string
	Kind   string
	Media  string
	Detail string
	At     time.Time
}

// RecordTransaction appends an audit row with a freshly generated ID.
func (d *DB) RecordTransaction(kind, media, detail string, at time.Time) error {
	id := uuid.NewString()
	_, err := d.sql.Exec(`INSERT INTO transactions (id, kind, media, detail, at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, media, detail, at.Unix())
	if err != nil {
		return fmt.Errorf("store: record transaction %s: %w", kind, err)
	}
	return nil
}

// Transactions returns the most recent limit audit rows, newest first.
func (d *DB) Transactions(limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(`SELECT id, kind, media, detail, at FROM transactions ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var at int64
		if err := rows.Scan(&t.ID, &t.Kind, &t.Media, &t.Detail, &at); err != nil {
			return nil, fmt.Errorf("store: list transactions: scan: %w", err)
		}
		t.At = time.Unix(at, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
