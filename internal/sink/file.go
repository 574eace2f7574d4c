package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/recording"
)

// dirPermissions is the permission mode for recording directories.
const dirPermissions = 0750

// File writes data points as JSON lines, one file per
// (recording, device, category) under the configured base directory:
//
//	<dir>/<recording>/<device>_<category>.jsonl
type File struct {
	cfg  config.FileSinkConfig
	init recording.InitState

	mu    sync.Mutex
	files map[string]*os.File
}

// fileLine is the JSON shape of one persisted line.
type fileLine struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Recording string    `json:"recording"`
	Category  string    `json:"category"`
	Data      any       `json:"data"`
}

// NewFile creates the file sink. Initialization ensures the base
// directory exists and is writable.
func NewFile(cfg config.FileSinkConfig) *File {
	f := &File{
		cfg:   cfg,
		files: make(map[string]*os.File),
	}
	if !cfg.Enabled {
		f.init = recording.InitPending
		return f
	}
	if err := os.MkdirAll(cfg.Dir, dirPermissions); err != nil {
		f.init = recording.InitFailed
		return f
	}
	f.init = recording.InitSuccess
	return f
}

// Name identifies the sink in logs.
func (f *File) Name() string { return "file" }

// Enabled reports whether the sink participates in sessions.
func (f *File) Enabled() bool { return f.cfg.Enabled }

// Initialized reports the outcome of directory creation.
func (f *File) Initialized() recording.InitState { return f.init }

// SaveData appends one JSON line to the (recording, device, category)
// file, opening and caching it on first use.
func (f *File) SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error {
	line, err := json.Marshal(fileLine{
		Timestamp: ts,
		DeviceID:  deviceID,
		Recording: recordingName,
		Category:  category,
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("file sink: encoding payload: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.open(recordingName, deviceID, category)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("file sink: writing line: %w", err)
	}
	return nil
}

// open returns the cached file handle for the key, creating the file and
// its recording directory if needed. Caller holds f.mu.
func (f *File) open(recordingName, deviceID, category string) (*os.File, error) {
	key := recordingName + "/" + deviceID + "/" + category
	if file, ok := f.files[key]; ok {
		return file, nil
	}

	dir := filepath.Join(f.cfg.Dir, recordingName)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("file sink: creating recording dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", deviceID, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("file sink: opening %s: %w", path, err)
	}
	f.files[key] = file
	return file, nil
}

// StopSaving closes every open file so the recording's output is
// complete on disk.
func (f *File) StopSaving() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for key, file := range f.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("file sink: closing %s: %w", key, err)
		}
	}
	f.files = make(map[string]*os.File)
	return firstErr
}

// Cleanup closes any files still open.
func (f *File) Cleanup() error {
	return f.StopSaving()
}
