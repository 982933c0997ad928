package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for entries that would land outside destDir.
var ErrUnsafePath = errors.New("entry escapes destination")

// Extractor decompresses one archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// ExtractError reports an unreadable, corrupt or unsupported archive.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string { return fmt.Sprintf("extract %s: %v", e.Archive, e.Err) }

func (e *ExtractError) Unwrap() error { return e.Err }

// Zip extracts .zip archives, the format mod.io serves modfiles in.
type Zip struct{}

var _ Extractor = Zip{}

func (Zip) Extract(ctx context.Context, archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	defer func() {
		_ = zr.Close()
	}()

	base, err := filepath.Abs(destDir)
	if err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(f, base); err != nil {
			return &ExtractError{Archive: archivePath, Err: err}
		}
	}
	return nil
}

func extractEntry(f *zip.File, base string) error {
	target, err := safeJoin(base, f.Name)
	if err != nil {
		return err
	}
	if target == base {
		return nil
	}

	mode := f.Mode()
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if mode&os.ModeSymlink != 0 {
		// Symlinks inside mod archives are never needed and could point
		// anywhere; skip them.
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return out.Close()
}

// safeJoin joins an archive entry name onto base and refuses anything
// that resolves outside base.
func safeJoin(base, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	p := filepath.Join(base, filepath.FromSlash(name))
	if p != base && !strings.HasPrefix(p, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return p, nil
}
