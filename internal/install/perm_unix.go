//go:build !windows

package install

import (
	"io/fs"
	"os"
	"path/filepath"
)

// PlatformGranter adds owner/group/other read access (and traversal on
// directories) to every entry under a path, keeping existing bits.
type PlatformGranter struct{}

func (PlatformGranter) GrantFullAccess(path string) error {
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		want := info.Mode().Perm() | 0o644
		if d.IsDir() {
			want |= 0o111 | 0o200
		}
		if want == info.Mode().Perm() {
			return nil
		}
		return os.Chmod(p, want)
	})
	if err != nil {
		return &PermissionError{Path: path, Err: err}
	}
	return nil
}
