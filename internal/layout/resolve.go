// Package layout finds the directory inside an extracted mod archive that
// actually holds the installable payload.
//
// Archive authors wrap payloads in arbitrary folders. Resolve strips single
// wrapper folders until it reaches a directory that contains files, stops at
// well-known BepInEx folder names, and refuses to guess when a level holds
// several unrelated folders and no files.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ErrAmbiguousLayout is returned by Result.Err when no payload root could
// be chosen.
var ErrAmbiguousLayout = errors.New("ambiguous plugin layout")

// maxDepth bounds descent through single-folder wrappers.
const maxDepth = 32

type Kind int

const (
	// Resolved: PluginsDir directly holds payload files.
	Resolved Kind = iota
	// PassThrough: descent stopped at a recognized folder name.
	PassThrough
	// Ambiguous: nothing to install, or several candidate folders.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case PassThrough:
		return "pass-through"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result describes the payload root found by Resolve. It is a value and is
// never mutated after being returned.
type Result struct {
	Kind       Kind
	PluginsDir string
	// Stop is the pass-through folder descent stopped at. It is empty
	// when a level with several folders was accepted as a whole.
	Stop    string
	Files   []string
	Folders []string

	// HasLoaderFramework is set when the payload root carries the loader's
	// folder together with both doorstop companions.
	HasLoaderFramework bool
	// IsLoaderFrameworkPackage is set when the payload is the loader's own
	// distribution rather than a mod built on top of it.
	IsLoaderFrameworkPackage bool
	Failed                   bool
}

// Err returns an error wrapping ErrAmbiguousLayout for failed results.
func (r Result) Err() error {
	if !r.Failed {
		return nil
	}
	return fmt.Errorf("%w: %s (folders: %v, files: %d)", ErrAmbiguousLayout, r.PluginsDir, r.Folders, len(r.Files))
}

// Markers names the files and folders that identify the loader framework.
type Markers struct {
	RootDir    string
	LibsDir    string
	ConfigFile string
	// CoreDir is looked up inside RootDir; only the loader's own
	// distribution ships it.
	CoreDir string
}

// BepInEx is the default marker set.
var BepInEx = Markers{
	RootDir:    "BepInEx",
	LibsDir:    "doorstop_libs",
	ConfigFile: "doorstop_config.ini",
	CoreDir:    "core",
}

// PluginsFolder is the pass-through name whose contents are plugin files.
const PluginsFolder = "plugins"

// DefaultPassThrough lists folder names that are themselves part of the
// payload and must not be descended into.
var DefaultPassThrough = []string{PluginsFolder, "core", "patchers", "config"}

// DefaultAnchors lists the folder names that make a level with several
// folders installable as a whole.
var DefaultAnchors = []string{PluginsFolder, "core"}

// Resolver holds the naming rules used by Resolve.
type Resolver struct {
	Markers     Markers
	PassThrough []string
	// Anchors is consulted only when a level holds more than one folder.
	Anchors []string
	// Ignore lists entry names skipped during classification.
	Ignore []string
}

// Default is the Resolver used by the package-level Resolve.
var Default = Resolver{
	Markers:     BepInEx,
	PassThrough: DefaultPassThrough,
	Anchors:     DefaultAnchors,
	Ignore:      []string{"__MACOSX", ".DS_Store", "Thumbs.db"},
}

// Resolve runs Default.Resolve.
func Resolve(dir string) (Result, error) { return Default.Resolve(dir) }

// Resolve classifies dir. Errors are only returned for filesystem failures;
// an undecidable layout is reported through Result.Failed.
func (rv Resolver) Resolve(dir string) (Result, error) {
	return rv.resolve(filepath.Clean(dir), 0)
}

func (rv Resolver) resolve(dir string, depth int) (Result, error) {
	files, folders, err := rv.partition(dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{PluginsDir: dir, Files: files, Folders: folders}

	if len(files) > 0 {
		loader := rv.hasLoader(files, folders)
		res.Kind = Resolved
		res.HasLoaderFramework = loader
		res.IsLoaderFrameworkPackage = loader && isDir(filepath.Join(dir, rv.Markers.RootDir, rv.Markers.CoreDir))
		return res, nil
	}

	switch {
	case len(folders) == 1:
		name := folders[0]
		if slices.Contains(rv.PassThrough, name) {
			res.Kind = PassThrough
			res.Stop = name
			if name == PluginsFolder {
				res.PluginsDir = filepath.Join(dir, name)
			}
			return res, nil
		}
		if depth >= maxDepth {
			break
		}
		return rv.resolve(filepath.Join(dir, name), depth+1)
	case len(folders) > 1:
		for _, name := range folders {
			if slices.Contains(rv.Anchors, name) {
				res.Kind = PassThrough
				return res, nil
			}
		}
	}

	res.Kind = Ambiguous
	res.Failed = true
	return res, nil
}

func (rv Resolver) partition(dir string) (files, folders []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if slices.Contains(rv.Ignore, e.Name()) {
			continue
		}
		if e.IsDir() {
			folders = append(folders, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	return files, folders, nil
}

func (rv Resolver) hasLoader(files, folders []string) bool {
	m := rv.Markers
	if m.RootDir == "" || m.LibsDir == "" || m.ConfigFile == "" {
		return false
	}
	return slices.Contains(folders, m.RootDir) &&
		slices.Contains(folders, m.LibsDir) &&
		slices.Contains(files, m.ConfigFile)
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
