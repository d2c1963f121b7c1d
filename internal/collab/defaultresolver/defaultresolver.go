// Package defaultresolver is the reference Resolver collaborator. Real
// upgrade resolution requires comparing installed package versions against
// the store using RPM version-string comparison, which is treated
// out of scope ("version-string comparison" is an external collaborator
// with no novel engineering here). This reference implementation resolves
// against an injected "installed" snapshot using plain string inequality,
// so the daemon and its pre-download engine are exercisable standalone;
// production deployments inject a Resolver backed by the real rpmvercmp.
package defaultresolver

import (
	"context"
	"fmt"

	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/store"
)

// Installed maps a package name to its currently installed EVR string
// ("epoch:version-release"). A production Resolver would read this from
// the local RPM database instead of an in-memory map.
type Installed map[string]string

// Resolver is the reference collaborator satisfying collab.Resolver.
type Resolver struct {
	Installed Installed
}

// New returns a Resolver seeded with an installed-package snapshot.
func New(installed Installed) *Resolver {
	if installed == nil {
		installed = Installed{}
	}
	return &Resolver{Installed: installed}
}

// ResolveUpgrade compares every package row in the store for arch against
// the installed snapshot, returning an action wherever the store's EVR
// differs from what's installed.
func (r *Resolver) ResolveUpgrade(ctx context.Context, db *store.DB, arch string) (collab.ResolveResult, error) {
	media, err := db.ListMedia()
	if err != nil {
		return collab.ResolveResult{}, fmt.Errorf("defaultresolver: list media: %w", err)
	}

	var actions []collab.UpgradeAction
	var problems []string

	for _, m := range media {
		if !m.Enabled {
			continue
		}
		pkgs, err := db.Search("%", 100000)
		if err != nil {
			problems = append(problems, fmt.Sprintf("media %s: %v", m.Name, err))
			continue
		}
		for _, p := range pkgs {
			if p.Media != m.Name {
				continue
			}
			if arch != "" && p.Arch != arch {
				continue
			}
			targetEVR := evr(p.Epoch, p.Version, p.Release)
			current, known := r.Installed[p.Name]
			if known && current == targetEVR {
				continue
			}
			actions = append(actions, collab.UpgradeAction{
				Name:       p.Name,
				CurrentEVR: current,
				TargetEVR:  targetEVR,
				Arch:       p.Arch,
				Size:       p.Size,
				URL:        p.URL,
				Filename:   p.Filename,
				Media:      p.Media,
			})
		}
	}

	return collab.ResolveResult{Actions: actions, Success: true, Problems: problems}, nil
}

func evr(epoch, version, release string) string {
	if epoch == "" || epoch == "0" {
		return version + "-" + release
	}
	return epoch + ":" + version + "-" + release
}
