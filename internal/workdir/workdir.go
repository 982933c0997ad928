// Package workdir names the on-disk locations used while processing a game.
//
//	<output>/<game_id>-mods/
//	    <name_id>/              extraction scratch space, one per mod
//	    downloads/<name_id>/    archive holding area
//	    <staging>/              assembled loader install tree
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinoosan/modsync/internal/data"
)

const downloadsDir = "downloads"

type Dirs struct {
	Root      string
	Downloads string
	Staging   string
}

// For returns the directories for game under outputDir.
func For(outputDir string, g *data.Game, stagingName string) Dirs {
	root := filepath.Join(outputDir, fmt.Sprintf("%d-mods", g.ID))
	return Dirs{
		Root:      root,
		Downloads: filepath.Join(root, downloadsDir),
		Staging:   filepath.Join(root, stagingName),
	}
}

// ModDir is the scratch directory a mod is extracted into.
func (d Dirs) ModDir(m data.Mod) string { return filepath.Join(d.Root, m.NameID) }

// HoldingDir is where a mod's archive is downloaded to and kept.
func (d Dirs) HoldingDir(m data.Mod) string { return filepath.Join(d.Downloads, m.NameID) }

// Reserved reports whether a mod's scratch directory would collide with
// one of the fixed directories. Names are compared case-insensitively
// since the output tree may live on a case-insensitive filesystem.
func (d Dirs) Reserved(m data.Mod) bool {
	if filepath.Dir(d.ModDir(m)) != d.Root {
		return true
	}
	return strings.EqualFold(m.NameID, downloadsDir) || strings.EqualFold(m.NameID, filepath.Base(d.Staging))
}

// Reset wipes the game's tree and recreates the fixed directories, so no
// state from a previous run survives.
func (d Dirs) Reset() error {
	if err := os.RemoveAll(d.Root); err != nil {
		return fmt.Errorf("wipe %s: %w", d.Root, err)
	}
	for _, p := range []string{d.Root, d.Downloads, d.Staging} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", p, err)
		}
	}
	return nil
}
