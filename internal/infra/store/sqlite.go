// Package store persists UI session state and the last fetched catalog in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the database.
	DefaultDBPath = "data/stellar.db"
)

// ErrNotOpen is returned when the database is used before Open or after Close.
var ErrNotOpen = errors.New("database not open")

// Stats summarises what is stored.
type Stats struct {
	SchemaVersion  string    `json:"schemaVersion"`
	CatalogTracks  int       `json:"catalogTracks"`
	CatalogSavedAt time.Time `json:"catalogSavedAt"`
	HasSession     bool      `json:"hasSession"`
}

// DB is the SQLite store.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewDB creates a store at path.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
		now:  time.Now,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Store opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating store schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	-- Single-row UI session blob
	CREATE TABLE IF NOT EXISTS session_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Last merged catalog, in catalog order
	CREATE TABLE IF NOT EXISTS catalog_tracks (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Store schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM store_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := d.now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SaveSession replaces the stored session state.
func (d *DB) SaveSession(s player.SessionState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	now := d.now().Format(time.RFC3339)
	_, err = d.db.Exec(`
		INSERT INTO session_state (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = ?, updated_at = ?
	`, string(data), now, string(data), now)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session state. ok is false when nothing was saved.
// A corrupt row is logged and treated as absent.
func (d *DB) LoadSession() (player.SessionState, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return player.SessionState{}, false, ErrNotOpen
	}

	var data string
	err := d.db.QueryRow("SELECT data FROM session_state WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return player.SessionState{}, false, nil
	}
	if err != nil {
		return player.SessionState{}, false, fmt.Errorf("load session: %w", err)
	}

	var s player.SessionState
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable session state")
		return player.SessionState{}, false, nil
	}
	return s, true, nil
}

// SaveCatalog replaces the stored catalog snapshot.
func (d *DB) SaveCatalog(tracks []track.Track) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM catalog_tracks"); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO catalog_tracks (position, id, data) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range track.Merge(tracks) {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode track %s: %w", t.ID, err)
		}
		if _, err := stmt.Exec(i, t.ID, string(data)); err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
	}

	now := d.now().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES ('catalog_saved_at', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, now, now, now, now); err != nil {
		return fmt.Errorf("stamp catalog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Debug().Int("tracks", len(tracks)).Msg("Catalog snapshot saved")
	return nil
}

// LoadCatalog returns the stored catalog in its saved order.
func (d *DB) LoadCatalog() ([]track.Track, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := d.db.Query("SELECT data FROM catalog_tracks ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var tracks []track.Track
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t track.Track
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable catalog row")
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// GetStats returns store statistics.
func (d *DB) GetStats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	stats := &Stats{}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM catalog_tracks").Scan(&stats.CatalogTracks); err != nil {
		return nil, err
	}

	var sessions int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM session_state").Scan(&sessions); err != nil {
		return nil, err
	}
	stats.HasSession = sessions > 0

	stats.SchemaVersion, _ = d.getMeta("schema_version")
	if saved, _ := d.getMeta("catalog_saved_at"); saved != "" {
		stats.CatalogSavedAt, _ = time.Parse(time.RFC3339, saved)
	}

	return stats, nil
}
