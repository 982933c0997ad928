package data

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrInvalidMod = errors.New("invalid mod")

// Mod is a subscribed mod. It is read-only input to the pipeline.
type Mod struct {
	ID      int     `json:"id"`
	NameID  string  `json:"name_id"`
	Name    string  `json:"name,omitempty"`
	Modfile Modfile `json:"modfile"`
}

// Modfile is the downloadable archive of a mod.
type Modfile struct {
	ID          int    `json:"id,omitempty"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// ArchiveName returns a filename safe to join under a directory. Remote
// filenames are reduced to their base name; an empty name falls back to
// "<name_id>.zip".
func (m Mod) ArchiveName() string {
	name := strings.TrimSpace(m.Modfile.Filename)
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) || name == "" || name == ".." {
		return m.NameID + ".zip"
	}
	return name
}
