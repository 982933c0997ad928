package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinoosan/modsync/internal/installcfg"
	"github.com/tinoosan/modsync/internal/layout"
)

// ErrCollision is returned under CollisionError when a destination entry
// already exists.
var ErrCollision = errors.New("destination exists")

type fsOps interface {
	Rename(oldpath, newpath string) error
	RemoveAll(string) error
	MkdirAll(string, os.FileMode) error
}

type osFS struct{}

func (osFS) Rename(o, n string) error                { return os.Rename(o, n) }
func (osFS) RemoveAll(p string) error                { return os.RemoveAll(p) }
func (osFS) MkdirAll(p string, m os.FileMode) error { return os.MkdirAll(p, m) }

// Installer moves resolved payload trees into their destinations.
type Installer struct {
	opts     installcfg.Options
	resolver layout.Resolver
	granter  Granter
	log      *slog.Logger
	fs       fsOps
}

func New(log *slog.Logger, opts installcfg.Options, g Granter) *Installer {
	if log == nil {
		log = slog.Default()
	}
	if g == nil {
		g = NopGranter{}
	}
	if opts.Policy == "" {
		opts.Policy = installcfg.CollisionOverwrite
	}
	return &Installer{opts: opts, resolver: layout.Default, granter: g, log: log, fs: osFS{}}
}

// SetResolver swaps the layout rules used by InstallGame.
func (in *Installer) SetResolver(r layout.Resolver) { in.resolver = r }

func (in *Installer) Options() installcfg.Options { return in.opts }

// Install moves every entry of res.PluginsDir into destRoot, merging into
// directories that already exist, then removes the emptied source.
func (in *Installer) Install(ctx context.Context, res layout.Result, destRoot string) error {
	if res.Failed {
		return res.Err()
	}
	src := filepath.Clean(res.PluginsDir)
	dst := filepath.Clean(destRoot)
	if src == dst || strings.HasPrefix(dst, src+string(os.PathSeparator)) {
		return fmt.Errorf("install %s into %s: destination inside source", src, dst)
	}
	if err := in.merge(ctx, src, dst); err != nil {
		return fmt.Errorf("install %s into %s: %w", src, dst, err)
	}
	if err := in.fs.RemoveAll(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}

func (in *Installer) merge(ctx context.Context, src, dst string) error {
	if err := in.fs.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())

		fi, err := os.Lstat(d)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := in.move(s, d); err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		}

		if e.IsDir() && fi.IsDir() {
			if err := in.merge(ctx, s, d); err != nil {
				return err
			}
			continue
		}

		switch in.opts.Policy {
		case installcfg.CollisionSkip:
			in.log.Debug("install skip existing", "path", d)
			continue
		case installcfg.CollisionError:
			return fmt.Errorf("%w: %s", ErrCollision, d)
		}
		if err := in.fs.RemoveAll(d); err != nil {
			return err
		}
		if err := in.move(s, d); err != nil {
			return err
		}
	}
	return nil
}

// move renames s to d, falling back to copy+remove when the rename
// crosses filesystems.
func (in *Installer) move(s, d string) error {
	err := in.fs.Rename(s, d)
	if err == nil {
		return nil
	}
	var le *os.LinkError
	if !errors.As(err, &le) {
		return err
	}
	if err := copyTree(s, d); err != nil {
		_ = in.fs.RemoveAll(d)
		return fmt.Errorf("copy %s: %w", s, err)
	}
	return in.fs.RemoveAll(s)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, e os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if e.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !e.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
