// Package history persists device sightings and plug events across
// runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"usbbw/internal/diff"
	"usbbw/internal/model"
	"usbbw/internal/refresh"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the sighting database. Each Open starts a new session so
// events can be grouped per process run.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	sessionID string
}

// Sighting is the accumulated record for one device identity.
type Sighting struct {
	ConfigKey string    `json:"config_key"`
	Path      string    `json:"path"`
	VendorID  uint16    `json:"vendor_id"`
	ProductID uint16    `json:"product_id"`
	Name      string    `json:"name"`
	Speed     string    `json:"speed"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Event is one plug or unplug observation.
type Event struct {
	Time      time.Time `json:"time"`
	Session   string    `json:"session"`
	ConfigKey string    `json:"config_key"`
	Path      string    `json:"path"`
	Class     string    `json:"class"`
}

// Open creates or opens the history database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, "history.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:        db,
		path:      dbPath,
		sessionID: uuid.NewString(),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	_, err = s.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordSnapshot upserts a sighting per device in the snapshot and
// appends an event for every New or Removed classification. It
// implements refresh.Sink.
func (s *Store) RecordSnapshot(ctx context.Context, snap *refresh.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := snap.Taken.UTC()
	for _, d := range snap.Topology.DevicesTreeOrder() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sightings (config_key, path, vendor_id, product_id, name, speed, first_seen, last_seen, last_session)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(config_key) DO UPDATE SET
				path = excluded.path,
				name = excluded.name,
				speed = excluded.speed,
				last_seen = excluded.last_seen,
				last_session = excluded.last_session`,
			d.ConfigKey(), d.Path.String(), d.VendorID, d.ProductID,
			d.DisplayName(), d.Speed.String(), now, now, s.sessionID)
		if err != nil {
			return fmt.Errorf("upserting sighting %s: %w", d.ConfigKey(), err)
		}
	}

	for path, entry := range snap.Diff.ByPath {
		if entry.Class == diff.Unchanged {
			continue
		}
		configKey := ""
		if d, ok := snap.Topology.Device(mustParse(path)); ok {
			configKey = d.ConfigKey()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (ts, session, config_key, path, class)
			VALUES (?, ?, ?, ?, ?)`,
			now, s.sessionID, configKey, path, string(entry.Class))
		if err != nil {
			return fmt.Errorf("recording event for %s: %w", path, err)
		}
	}

	return tx.Commit()
}

// mustParse re-parses a path string that came out of a topology; it
// is valid by construction, and a removed-device miss just leaves the
// event's config key empty.
func mustParse(s string) model.Path {
	p, _ := model.ParsePath(s)
	return p
}

// Sightings returns all known device identities, most recently seen
// first.
func (s *Store) Sightings(ctx context.Context) ([]Sighting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT config_key, path, vendor_id, product_id, name, speed, first_seen, last_seen
		FROM sightings
		ORDER BY last_seen DESC, config_key`)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var sg Sighting
		if err := rows.Scan(&sg.ConfigKey, &sg.Path, &sg.VendorID, &sg.ProductID,
			&sg.Name, &sg.Speed, &sg.FirstSeen, &sg.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning sighting: %w", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// Events returns the most recent plug/unplug events, newest first.
func (s *Store) Events(ctx context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, session, config_key, path, class
		FROM events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Time, &ev.Session, &ev.ConfigKey, &ev.Path, &ev.Class); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
