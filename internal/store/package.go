package store

import (
	"database/sql"
	"fmt"
)

// Package is a package record, keyed by
// (name, epoch, version, release, arch).
type Package struct {
	Name    string
	Epoch   string
	Version string
	Release string
	Arch    string
	URL     string
	Filename string
	Size    int64
	Media   string
	Summary string
}

const packageColumns = `name, epoch, version, release, arch, url, filename, size, media, summary`

func scanPackage(s rowScanner) (Package, error) {
	var p Package
	if err := s.Scan(&p.Name, &p.Epoch, &p.Version, &p.Release, &p.Arch, &p.URL, &p.Filename, &p.Size, &p.Media, &p.Summary); err != nil {
		return Package{}, err
	}
	return p, nil
}

// GetPackage returns the first package row matching name, or found=false if
// none exists. When multiple arches/versions exist, the highest version by
// lexical version-then-release ordering is preferred, matching a single
// best-match lookup.
func (d *DB) GetPackage(name string) (Package, bool, error) {
	row := d.sql.QueryRow(`SELECT `+packageColumns+` FROM packages WHERE name = ? ORDER BY version DESC, release DESC LIMIT 1`, name)
	p, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return Package{}, false, nil
	}
	if err != nil {
		return Package{}, false, fmt.Errorf("store: get package %s: %w", name, err)
	}
	return p, true, nil
}

// Search returns up to limit packages whose name matches pattern via SQL
// LIKE (caller is expected to have already wrapped pattern in %...%),
// ordered by name.
func (d *DB) Search(pattern string, limit int) ([]Package, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.Query(`SELECT `+packageColumns+` FROM packages WHERE name LIKE ? ORDER BY name LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search %q: %w", pattern, err)
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: search %q: scan: %w", pattern, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
