// Package record stores readings in a SQLite database. Every run of the pipeline is recorded as its own session.
package record

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ftl/ppi/rx"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Session struct {
	ID        uuid.UUID
	Source    string
	StartedAt time.Time
}

type Recorder struct {
	db      *sql.DB
	session Session
	insert  *sql.Stmt
}

// Open opens the database at the given path, migrates it to the latest schema and starts a new session.
func Open(path string, source string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %w", path, err)
	}
	err = migrateUp(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	result := &Recorder{
		db: db,
		session: Session{
			ID:        uuid.New(),
			Source:    source,
			StartedAt: time.Now(),
		},
	}

	_, err = db.Exec("INSERT INTO sessions (session_id, source, started_at) VALUES (?, ?, ?)",
		result.session.ID.String(), result.session.Source, result.session.StartedAt.UnixNano())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create session: %w", err)
	}

	result.insert, err = db.Prepare("INSERT INTO readings (session_id, seq, tick, timestamp, bearing, range_m) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot prepare insert statement: %w", err)
	}

	log.Printf("recording session %s to %s", result.session.ID, path)
	return result, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	// m is not closed, that would close the database
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (r *Recorder) Session() Session {
	return r.session
}

// OnReading stores the reading in the current session. Failures are logged, the pipeline keeps running.
func (r *Recorder) OnReading(reading rx.Reading) {
	_, err := r.insert.Exec(r.session.ID.String(), reading.Seq, reading.Tick, reading.Timestamp.UnixNano(), reading.Bearing, reading.Range)
	if err != nil {
		log.Printf("cannot record reading %d: %v", reading.Seq, err)
	}
}

// Readings returns all readings of the given session, ordered by their sequence number.
func (r *Recorder) Readings(session uuid.UUID) ([]rx.Reading, error) {
	rows, err := r.db.Query("SELECT seq, tick, timestamp, bearing, range_m FROM readings WHERE session_id = ? ORDER BY seq", session.String())
	if err != nil {
		return nil, fmt.Errorf("cannot query readings: %w", err)
	}
	defer rows.Close()

	var result []rx.Reading
	for rows.Next() {
		var reading rx.Reading
		var timestamp int64
		err := rows.Scan(&reading.Seq, &reading.Tick, &timestamp, &reading.Bearing, &reading.Range)
		if err != nil {
			return nil, fmt.Errorf("cannot read reading: %w", err)
		}
		reading.Timestamp = time.Unix(0, timestamp)
		result = append(result, reading)
	}
	return result, rows.Err()
}

// Sessions returns all recorded sessions, the oldest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query("SELECT session_id, source, started_at FROM sessions ORDER BY started_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("cannot query sessions: %w", err)
	}
	defer rows.Close()

	var result []Session
	for rows.Next() {
		var id string
		var startedAt int64
		var session Session
		err := rows.Scan(&id, &session.Source, &startedAt)
		if err != nil {
			return nil, fmt.Errorf("cannot read session: %w", err)
		}
		session.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", id, err)
		}
		session.StartedAt = time.Unix(0, startedAt)
		result = append(result, session)
	}
	return result, rows.Err()
}

func (r *Recorder) Close() error {
	r.insert.Close()
	return r.db.Close()
}
