package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/layout"
	"github.com/tinoosan/modsync/internal/metrics"
	"github.com/tinoosan/modsync/internal/workdir"
)

// Status is the result of installing one mod.
type Status string

const (
	StatusInstalled        Status = "installed"
	StatusAmbiguous        Status = "ambiguous_layout"
	StatusLoaderDisabled   Status = "loader_disabled"
	StatusPermissionDenied Status = "permission_denied"
	StatusFailed           Status = "failed"
)

// ModResult records where a mod was installed, or why it was skipped.
type ModResult struct {
	Mod    data.Mod `json:"mod"`
	Status Status   `json:"status"`
	Layout string   `json:"layout,omitempty"`
	Dest   string   `json:"dest,omitempty"`
	Err    error    `json:"-"`
}

// Report summarizes the installation pass for one game.
type Report struct {
	Mods       []ModResult `json:"mods"`
	Published  bool        `json:"published"`
	PublishDir string      `json:"publish_dir,omitempty"`
	PublishErr error       `json:"-"`
}

// Installed counts mods with StatusInstalled.
func (r Report) Installed() int {
	n := 0
	for _, m := range r.Mods {
		if m.Status == StatusInstalled {
			n++
		}
	}
	return n
}

// InstallGame resolves and installs every mod in mods, which must already
// be extracted into their scratch directories under dirs. Failures are
// recorded per mod and never stop the remaining installs.
func (in *Installer) InstallGame(ctx context.Context, g *data.Game, dirs workdir.Dirs, mods []data.Mod) Report {
	var rep Report
	log := in.log.With("game", g.NameID, "game_id", g.ID)
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			rep.Mods = append(rep.Mods, ModResult{Mod: m, Status: StatusFailed, Err: err})
			continue
		}
		r := in.installMod(ctx, dirs, m)
		metrics.Installs.WithLabelValues(g.Key(), string(r.Status)).Inc()
		switch r.Status {
		case StatusInstalled:
			log.Info("installed", "mod", m.NameID, "layout", r.Layout, "dest", r.Dest)
		case StatusLoaderDisabled:
			log.Info("skipping loader package, loader install disabled", "mod", m.NameID)
		default:
			log.Error("install skipped", "mod", m.NameID, "status", r.Status, "err", r.Err)
		}
		rep.Mods = append(rep.Mods, r)
	}
	return rep
}

func (in *Installer) installMod(ctx context.Context, dirs workdir.Dirs, m data.Mod) ModResult {
	src := dirs.ModDir(m)
	r := ModResult{Mod: m}

	if err := in.granter.GrantFullAccess(src); err != nil {
		r.Status, r.Err = StatusPermissionDenied, err
		return r
	}

	res, err := in.resolver.Resolve(src)
	if err != nil {
		r.Status, r.Err = StatusFailed, err
		return r
	}
	r.Layout = res.Kind.String()
	if res.Failed {
		r.Status, r.Err = StatusAmbiguous, res.Err()
		return r
	}

	dest, ok := in.destination(dirs, m, res)
	if !ok {
		r.Status = StatusLoaderDisabled
		return r
	}
	r.Dest = dest

	if err := in.Install(ctx, res, dest); err != nil {
		r.Status, r.Err = StatusFailed, err
		return r
	}
	// Leftovers (wrapper folders, ignored junk) go with the scratch dir.
	if err := in.fs.RemoveAll(src); err != nil {
		in.log.Warn("cleanup scratch dir", "path", src, "err", err)
	}
	r.Status = StatusInstalled
	return r
}

// destination routes a resolved payload. The loader's own package and
// payloads that already carry a loader tree merge into the staging root.
// A payload that stopped anywhere but the plugins folder is the contents of
// the loader root. Everything else gets its own plugins
// subdirectory. ok is false when the payload is the loader package and
// loader installation is disabled.
func (in *Installer) destination(dirs workdir.Dirs, m data.Mod, res layout.Result) (dest string, ok bool) {
	plugins := filepath.FromSlash(in.opts.PluginsPath)
	switch {
	case res.IsLoaderFrameworkPackage:
		if !in.opts.InstallLoader {
			return "", false
		}
		return dirs.Staging, true
	case res.HasLoaderFramework || slices.Contains(res.Folders, in.resolver.Markers.RootDir):
		return dirs.Staging, true
	case res.Kind == layout.PassThrough && res.Stop != filepath.Base(plugins):
		return filepath.Join(dirs.Staging, filepath.Dir(plugins)), true
	}
	return filepath.Join(dirs.Staging, plugins, m.NameID), true
}

// Publish merges the staging tree into target, the game's installation
// directory. An empty or missing target is not an error; published is
// false in that case.
func (in *Installer) Publish(ctx context.Context, staging, target string) (published bool, err error) {
	if target == "" {
		return false, nil
	}
	fi, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		in.log.Info("game directory missing, skipping publish", "dir", target)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("publish: %s is not a directory", target)
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	if err := in.granter.GrantFullAccess(staging); err != nil {
		in.log.Warn("grant access before publish", "dir", staging, "err", err)
	}
	res := layout.Result{Kind: layout.Resolved, PluginsDir: staging}
	if err := in.Install(ctx, res, target); err != nil {
		return false, err
	}
	in.log.Info("published loader tree", "from", staging, "to", target, "entries", len(entries))
	return true, nil
}
