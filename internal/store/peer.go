package store

import (
	"fmt"
	"strings"
	"time"
)

// Peer is a known peer daemon's announced address and media set.
type Peer struct {
	Host     string
	Port     int
	Media    []string
	LastSeen time.Time
}

// ListPeers returns every known peer, ordered by host then port.
func (d *DB) ListPeers() ([]Peer, error) {
	rows, err := d.sql.Query(`SELECT host, port, media, last_seen FROM peers ORDER BY host, port`)
	if err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	defer rows.Close()

	var out []Peer
	for rows.Next() {
		var p Peer
		var media string
		var lastSeen int64
		if err := rows.Scan(&p.Host, &p.Port, &media, &lastSeen); err != nil {
			return nil, fmt.Errorf("store: list peers: scan: %w", err)
		}
		p.Media = splitMedia(media)
		p.LastSeen = time.Unix(lastSeen, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPeer registers or refreshes a peer's media list and last-seen time.
// Registering the same (host, port, media) twice is idempotent in the
// returned peer list except for LastSeen.
func (d *DB) UpsertPeer(host string, port int, media []string, seenAt time.Time) error {
	_, err := d.sql.Exec(
		`INSERT INTO peers (host, port, media, last_seen) VALUES (?, ?, ?, ?)
		 ON CONFLICT(host, port) DO UPDATE SET media = excluded.media, last_seen = excluded.last_seen`,
		host, port, joinMedia(media), seenAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: upsert peer %s:%d: %w", host, port, err)
	}
	return nil
}

func joinMedia(media []string) string {
	return strings.Join(media, ",")
}

func splitMedia(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
