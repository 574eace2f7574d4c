package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/recording"
)

func TestFileSinkInitialization(t *testing.T) {
	t.Run("disabled stays pending", func(t *testing.T) {
		f := NewFile(config.FileSinkConfig{Enabled: false})
		if got := f.Initialized(); got != recording.InitPending {
			t.Errorf("Initialized() = %v, want InitPending", got)
		}
	})

	t.Run("enabled creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "recordings")
		f := NewFile(config.FileSinkConfig{Enabled: true, Dir: dir})
		if got := f.Initialized(); got != recording.InitSuccess {
			t.Errorf("Initialized() = %v, want InitSuccess", got)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("base directory not created: %v", err)
		}
	})

	t.Run("unwritable path fails", func(t *testing.T) {
		// A regular file where the directory should go.
		path := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		f := NewFile(config.FileSinkConfig{Enabled: true, Dir: filepath.Join(path, "sub")})
		if got := f.Initialized(); got != recording.InitFailed {
			t.Errorf("Initialized() = %v, want InitFailed", got)
		}
	})
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(config.FileSinkConfig{Enabled: true, Dir: dir})

	ts := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)
	payload := map[string]int{"bpm": 72}

	if err := f.SaveData(ts, "polar-123", "morning-run", "HR", payload); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}
	if err := f.SaveData(ts.Add(time.Second), "polar-123", "morning-run", "HR", payload); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}
	if err := f.StopSaving(); err != nil {
		t.Fatalf("StopSaving() error = %v", err)
	}

	path := filepath.Join(dir, "morning-run", "polar-123_HR.jsonl")
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output file: %v", err)
	}
	defer file.Close()

	var lines []fileLine
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line fileLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].DeviceID != "polar-123" || lines[0].Recording != "morning-run" || lines[0].Category != "HR" {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if !lines[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", lines[0].Timestamp, ts)
	}
}

func TestFileSinkSeparatesStreams(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(config.FileSinkConfig{Enabled: true, Dir: dir})

	ts := time.Now()
	if err := f.SaveData(ts, "polar-123", "run", "HR", 1); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveData(ts, "polar-123", "run", "ACC", 2); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveData(ts, "polar-456", "run", "HR", 3); err != nil {
		t.Fatal(err)
	}
	if err := f.StopSaving(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"polar-123_HR.jsonl", "polar-123_ACC.jsonl", "polar-456_HR.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, "run", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestFileSinkStopSavingIsIdempotent(t *testing.T) {
	f := NewFile(config.FileSinkConfig{Enabled: true, Dir: t.TempDir()})

	if err := f.SaveData(time.Now(), "polar-123", "run", "HR", 1); err != nil {
		t.Fatal(err)
	}
	if err := f.StopSaving(); err != nil {
		t.Errorf("first StopSaving() error = %v", err)
	}
	if err := f.StopSaving(); err != nil {
		t.Errorf("second StopSaving() error = %v", err)
	}

	// Writing after stop reopens the file in append mode.
	if err := f.SaveData(time.Now(), "polar-123", "run", "HR", 2); err != nil {
		t.Errorf("SaveData() after stop error = %v", err)
	}
	if err := f.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}
