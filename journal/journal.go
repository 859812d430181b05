// Package journal records compile-and-run history in a SQLite database.
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("tinyscript.journal")

// Entry is one recorded run.
type Entry struct {
	ID          int64
	At          time.Time
	Mode        string
	Source      string
	Diagnostics []string
	Output      string
	Fault       string
	Executed    bool
}

// Journal appends entries to a runs table.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          INTEGER NOT NULL,
	mode        TEXT NOT NULL,
	source      TEXT NOT NULL,
	diagnostics TEXT NOT NULL,
	output      TEXT NOT NULL,
	fault       TEXT NOT NULL,
	executed    INTEGER NOT NULL
)`

// Open opens or creates the journal at path. The parent directory is
// created if needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "journal: create %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "journal: opening database")
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "journal: setting busy timeout")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "journal: creating table")
	}

	log.Debugf("opened journal %s", path)
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends e and returns its id. A zero At is replaced with the
// current time.
func (j *Journal) Record(e Entry) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := j.db.Exec(
		`INSERT INTO runs (at, mode, source, diagnostics, output, fault, executed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.At.UnixNano(), e.Mode, e.Source, strings.Join(e.Diagnostics, "\n"),
		e.Output, e.Fault, e.Executed,
	)
	if err != nil {
		return 0, errors.Wrap(err, "journal: recording run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "journal: reading run id")
	}
	return id, nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT id, at, mode, source, diagnostics, output, fault, executed
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "journal: querying runs")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			at    int64
			diags string
		)
		if err := rows.Scan(&e.ID, &at, &e.Mode, &e.Source, &diags, &e.Output, &e.Fault, &e.Executed); err != nil {
			return nil, errors.Wrap(err, "journal: scanning run")
		}
		e.At = time.Unix(0, at)
		if diags != "" {
			e.Diagnostics = strings.Split(diags, "\n")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "journal: reading runs")
}

// Count returns the number of recorded runs.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "journal: counting runs")
	}
	return n, nil
}
