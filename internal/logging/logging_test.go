package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "modsync.log")
	log, closeLog, err := New(Options{Level: "info", Console: &console, File: file, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log = log.With("operation_id", "op1")
	log.Debug("debug detail", "k", 1)
	log.Info("hello", "mod", "a")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "debug detail") {
		t.Fatalf("console got debug record: %q", console.String())
	}
	if !strings.Contains(console.String(), "msg=hello") || !strings.Contains(console.String(), "operation_id=op1") {
		t.Fatalf("console output: %q", console.String())
	}

	f, err := os.Open(file)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()
	var msgs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line not JSON: %q", sc.Text())
		}
		if rec["operation_id"] != "op1" {
			t.Fatalf("missing operation_id: %v", rec)
		}
		msgs = append(msgs, rec["msg"].(string))
	}
	if len(msgs) != 2 || msgs[0] != "debug detail" || msgs[1] != "hello" {
		t.Fatalf("file messages = %v", msgs)
	}
}

func TestNewConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	log, closeLog, err := New(Options{Level: "warn", Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("quiet")
	log.Warn("loud")
	_ = closeLog()
	if strings.Contains(console.String(), "quiet") || !strings.Contains(console.String(), "loud") {
		t.Fatalf("console output: %q", console.String())
	}
}
