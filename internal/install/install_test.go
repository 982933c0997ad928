package install

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/installcfg"
	"github.com/tinoosan/modsync/internal/layout"
	"github.com/tinoosan/modsync/internal/workdir"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func newInstaller(policy installcfg.CollisionPolicy) *Installer {
	opts := installcfg.DefaultOptions()
	opts.Policy = policy
	return New(discardLogger(), opts, nil)
}

func TestInstallMergesAndRemovesSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeFiles(t, src, map[string]string{
		"a.dll":          "new-a",
		"sub/b.dll":      "b",
		"sub/deep/c.txt": "c",
	})
	writeFiles(t, dst, map[string]string{
		"a.dll":       "old-a",
		"sub/keep.md": "keep",
	})

	in := newInstaller(installcfg.CollisionOverwrite)
	res := layout.Result{Kind: layout.Resolved, PluginsDir: src}
	if err := in.Install(context.Background(), res, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if got := readFile(t, filepath.Join(dst, "a.dll")); got != "new-a" {
		t.Fatalf("a.dll = %q", got)
	}
	for _, p := range []string{"sub/b.dll", "sub/deep/c.txt", "sub/keep.md"} {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(p))); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source tree not removed: %v", err)
	}
}

func TestInstallCollisionPolicies(t *testing.T) {
	t.Run("skip keeps existing", func(t *testing.T) {
		root := t.TempDir()
		src, dst := filepath.Join(root, "src"), filepath.Join(root, "dst")
		writeFiles(t, src, map[string]string{"a.dll": "new", "b.dll": "b"})
		writeFiles(t, dst, map[string]string{"a.dll": "old"})

		in := newInstaller(installcfg.CollisionSkip)
		if err := in.Install(context.Background(), layout.Result{PluginsDir: src}, dst); err != nil {
			t.Fatalf("Install: %v", err)
		}
		if got := readFile(t, filepath.Join(dst, "a.dll")); got != "old" {
			t.Fatalf("a.dll = %q", got)
		}
		if got := readFile(t, filepath.Join(dst, "b.dll")); got != "b" {
			t.Fatalf("b.dll = %q", got)
		}
	})

	t.Run("error refuses", func(t *testing.T) {
		root := t.TempDir()
		src, dst := filepath.Join(root, "src"), filepath.Join(root, "dst")
		writeFiles(t, src, map[string]string{"a.dll": "new"})
		writeFiles(t, dst, map[string]string{"a.dll": "old"})

		in := newInstaller(installcfg.CollisionError)
		err := in.Install(context.Background(), layout.Result{PluginsDir: src}, dst)
		if !errors.Is(err, ErrCollision) {
			t.Fatalf("expected ErrCollision, got %v", err)
		}
		if got := readFile(t, filepath.Join(dst, "a.dll")); got != "old" {
			t.Fatalf("a.dll = %q", got)
		}
	})
}

func TestInstallRejectsFailedAndNestedDest(t *testing.T) {
	in := newInstaller(installcfg.CollisionOverwrite)
	root := t.TempDir()

	failed := layout.Result{Kind: layout.Ambiguous, PluginsDir: root, Failed: true}
	if err := in.Install(context.Background(), failed, filepath.Join(root, "x")); !errors.Is(err, layout.ErrAmbiguousLayout) {
		t.Fatalf("expected ErrAmbiguousLayout, got %v", err)
	}

	ok := layout.Result{Kind: layout.Resolved, PluginsDir: root}
	if err := in.Install(context.Background(), ok, filepath.Join(root, "inner")); err == nil {
		t.Fatalf("expected error for destination inside source")
	}
}

func TestResolveIsIdempotentAfterInstall(t *testing.T) {
	root := t.TempDir()
	scratch := filepath.Join(root, "scratch")
	writeFiles(t, scratch, map[string]string{"Wrapper/Inner/plugins/a.dll": "a"})

	first, err := layout.Resolve(scratch)
	if err != nil || first.Failed {
		t.Fatalf("resolve: %+v %v", first, err)
	}
	dst := filepath.Join(root, "dst")
	if err := newInstaller(installcfg.CollisionOverwrite).Install(context.Background(), first, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}

	again, err := layout.Resolve(dst)
	if err != nil {
		t.Fatalf("resolve dst: %v", err)
	}
	if again.Kind != layout.Resolved || again.PluginsDir != dst {
		t.Fatalf("expected payload at root, got %+v", again)
	}
}

func newDirs(t *testing.T) (workdir.Dirs, *data.Game) {
	t.Helper()
	g := data.NewGame(9, "Game", "game", nil)
	d := workdir.For(t.TempDir(), g, installcfg.DefaultOptions().StagingName)
	if err := d.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return d, g
}

func TestInstallGameRouting(t *testing.T) {
	d, g := newDirs(t)
	plain := data.Mod{ID: 1, NameID: "plain"}
	tree := data.Mod{ID: 2, NameID: "tree"}
	loader := data.Mod{ID: 3, NameID: "bepinexpack"}
	messy := data.Mod{ID: 4, NameID: "messy"}

	writeFiles(t, d.ModDir(plain), map[string]string{"Plain/plugins/plain.dll": "p"})
	writeFiles(t, d.ModDir(tree), map[string]string{"BepInEx/plugins/Tree/tree.dll": "t", "BepInEx/config/tree.cfg": "c"})
	writeFiles(t, d.ModDir(loader), map[string]string{
		"BepInExPack/BepInEx/core/BepInEx.dll":     "core",
		"BepInExPack/doorstop_libs/libdoorstop.so": "so",
		"BepInExPack/doorstop_config.ini":          "ini",
		"BepInExPack/winhttp.dll":                  "w",
	})
	writeFiles(t, d.ModDir(messy), map[string]string{"one/a.dll": "a", "two/b.dll": "b"})

	var granted []string
	in := New(discardLogger(), installcfg.DefaultOptions(), GranterFunc(func(p string) error {
		granted = append(granted, p)
		return nil
	}))
	rep := in.InstallGame(context.Background(), g, d, []data.Mod{plain, tree, loader, messy})

	if len(rep.Mods) != 4 {
		t.Fatalf("results = %d", len(rep.Mods))
	}
	want := []Status{StatusInstalled, StatusInstalled, StatusInstalled, StatusAmbiguous}
	for i, r := range rep.Mods {
		if r.Status != want[i] {
			t.Fatalf("mod %s status = %s want %s (err %v)", r.Mod.NameID, r.Status, want[i], r.Err)
		}
	}
	if rep.Installed() != 3 {
		t.Fatalf("installed = %d", rep.Installed())
	}
	if len(granted) != 4 {
		t.Fatalf("granted = %v", granted)
	}

	for _, p := range []string{
		"BepInEx/plugins/plain/plain.dll",
		"BepInEx/plugins/Tree/tree.dll",
		"BepInEx/config/tree.cfg",
		"BepInEx/core/BepInEx.dll",
		"doorstop_config.ini",
		"winhttp.dll",
	} {
		if _, err := os.Stat(filepath.Join(d.Staging, filepath.FromSlash(p))); err != nil {
			t.Fatalf("missing %s in staging: %v", p, err)
		}
	}
	if _, err := os.Stat(d.ModDir(plain)); !os.IsNotExist(err) {
		t.Fatalf("scratch dir for installed mod not removed")
	}
	if _, err := os.Stat(d.ModDir(messy)); err != nil {
		t.Fatalf("ambiguous mod should be left in place: %v", err)
	}
}

func TestInstallGameLoaderDisabled(t *testing.T) {
	d, g := newDirs(t)
	loader := data.Mod{ID: 3, NameID: "bepinexpack"}
	writeFiles(t, d.ModDir(loader), map[string]string{
		"BepInEx/core/BepInEx.dll":     "core",
		"doorstop_libs/libdoorstop.so": "so",
		"doorstop_config.ini":          "ini",
	})

	opts := installcfg.DefaultOptions()
	opts.InstallLoader = false
	rep := New(discardLogger(), opts, nil).InstallGame(context.Background(), g, d, []data.Mod{loader})
	if rep.Mods[0].Status != StatusLoaderDisabled {
		t.Fatalf("status = %s", rep.Mods[0].Status)
	}
	if _, err := os.Stat(filepath.Join(d.Staging, "BepInEx")); !os.IsNotExist(err) {
		t.Fatalf("loader installed despite being disabled")
	}
}

func TestInstallGameRoutesOnStopFolderNotModName(t *testing.T) {
	for _, nameID := range []string{"othermod", "plugins"} {
		t.Run(nameID, func(t *testing.T) {
			d, g := newDirs(t)
			m := data.Mod{ID: 1, NameID: nameID}
			writeFiles(t, d.ModDir(m), map[string]string{"config/x.cfg": "c", "plugins/x.dll": "x"})

			rep := New(discardLogger(), installcfg.DefaultOptions(), nil).InstallGame(context.Background(), g, d, []data.Mod{m})
			if rep.Mods[0].Status != StatusInstalled {
				t.Fatalf("status = %s (err %v)", rep.Mods[0].Status, rep.Mods[0].Err)
			}
			for _, p := range []string{"BepInEx/config/x.cfg", "BepInEx/plugins/x.dll"} {
				if _, err := os.Stat(filepath.Join(d.Staging, filepath.FromSlash(p))); err != nil {
					t.Fatalf("missing %s in staging: %v", p, err)
				}
			}
			if _, err := os.Stat(filepath.Join(d.Staging, "BepInEx", "plugins", nameID, "plugins")); !os.IsNotExist(err) {
				t.Fatalf("payload nested under plugins/%s", nameID)
			}
		})
	}
}

func TestInstallGamePermissionFailureSkipsMod(t *testing.T) {
	d, g := newDirs(t)
	bad := data.Mod{ID: 1, NameID: "bad"}
	good := data.Mod{ID: 2, NameID: "good"}
	writeFiles(t, d.ModDir(bad), map[string]string{"a.dll": "a"})
	writeFiles(t, d.ModDir(good), map[string]string{"b.dll": "b"})

	in := New(discardLogger(), installcfg.DefaultOptions(), GranterFunc(func(p string) error {
		if filepath.Base(p) == "bad" {
			return &PermissionError{Path: p, Err: os.ErrPermission}
		}
		return nil
	}))
	rep := in.InstallGame(context.Background(), g, d, []data.Mod{bad, good})
	if rep.Mods[0].Status != StatusPermissionDenied {
		t.Fatalf("bad status = %s", rep.Mods[0].Status)
	}
	var pe *PermissionError
	if !errors.As(rep.Mods[0].Err, &pe) {
		t.Fatalf("expected PermissionError, got %v", rep.Mods[0].Err)
	}
	if rep.Mods[1].Status != StatusInstalled {
		t.Fatalf("good status = %s", rep.Mods[1].Status)
	}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	in := newInstaller(installcfg.CollisionOverwrite)

	t.Run("no target configured", func(t *testing.T) {
		ok, err := in.Publish(ctx, t.TempDir(), "")
		if ok || err != nil {
			t.Fatalf("Publish = %v, %v", ok, err)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		ok, err := in.Publish(ctx, t.TempDir(), filepath.Join(t.TempDir(), "nope"))
		if ok || err != nil {
			t.Fatalf("Publish = %v, %v", ok, err)
		}
	})

	t.Run("merges into game dir", func(t *testing.T) {
		staging := filepath.Join(t.TempDir(), "stage")
		game := t.TempDir()
		writeFiles(t, staging, map[string]string{"BepInEx/plugins/mod/a.dll": "a", "winhttp.dll": "w"})
		writeFiles(t, game, map[string]string{"Game.exe": "exe", "BepInEx/plugins/other/o.dll": "o"})

		ok, err := in.Publish(ctx, staging, game)
		if err != nil || !ok {
			t.Fatalf("Publish = %v, %v", ok, err)
		}
		for _, p := range []string{"Game.exe", "winhttp.dll", "BepInEx/plugins/mod/a.dll", "BepInEx/plugins/other/o.dll"} {
			if _, err := os.Stat(filepath.Join(game, filepath.FromSlash(p))); err != nil {
				t.Fatalf("missing %s: %v", p, err)
			}
		}
	})

	t.Run("target is a file", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file")
		writeFiles(t, filepath.Dir(f), map[string]string{"file": "x"})
		if _, err := in.Publish(ctx, t.TempDir(), f); err == nil {
			t.Fatalf("expected error")
		}
	})
}
