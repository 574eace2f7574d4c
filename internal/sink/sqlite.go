package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/infrastructure/database"
	"github.com/nerrad567/biostream-core/internal/recording"
)

// SQLite persists recording metadata and data points to the application
// database. It implements recording.SessionStarter so each session gets
// a row in the recordings table before data arrives.
type SQLite struct {
	cfg config.SQLiteSinkConfig
	db  *database.DB

	mu        sync.Mutex
	sessionID int64
	session   string
}

// NewSQLite creates the SQLite sink over an already-opened database.
func NewSQLite(cfg config.SQLiteSinkConfig, db *database.DB) *SQLite {
	return &SQLite{cfg: cfg, db: db}
}

// Name identifies the sink in logs.
func (s *SQLite) Name() string { return "sqlite" }

// Enabled reports whether the sink participates in sessions.
func (s *SQLite) Enabled() bool { return s.cfg.Enabled }

// Initialized reports readiness. The database connection is established
// and migrated at startup, so an enabled sink with a database is ready.
func (s *SQLite) Initialized() recording.InitState {
	if !s.cfg.Enabled {
		return recording.InitPending
	}
	if s.db == nil {
		return recording.InitFailed
	}
	return recording.InitSuccess
}

// StartSession inserts the recordings row for the new session and
// remembers its id for the data points that follow.
func (s *SQLite) StartSession(name string, startedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO recordings (name, started_at) VALUES (?, ?)`,
		name, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: inserting recording: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite sink: reading recording id: %w", err)
	}

	s.mu.Lock()
	s.sessionID = id
	s.session = name
	s.mu.Unlock()
	return nil
}

// SaveData inserts one data point, serializing the payload as JSON.
func (s *SQLite) SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sqlite sink: encoding payload: %w", err)
	}

	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO recording_data (recording_name, device_id, category, timestamp, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		recordingName, deviceID, category, ts.UTC(), string(blob),
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: inserting data point: %w", err)
	}
	return nil
}

// StopSaving stamps the session's stopped_at and forgets the session.
func (s *SQLite) StopSaving() error {
	s.mu.Lock()
	id := s.sessionID
	s.sessionID = 0
	s.session = ""
	s.mu.Unlock()

	if id == 0 {
		return nil
	}

	_, err := s.db.ExecContext(context.Background(),
		`UPDATE recordings SET stopped_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: stamping stopped_at: %w", err)
	}
	return nil
}

// Cleanup releases per-session state. The database itself is owned by
// the caller and closed at shutdown.
func (s *SQLite) Cleanup() error {
	s.mu.Lock()
	s.sessionID = 0
	s.session = ""
	s.mu.Unlock()
	return nil
}
