package journal

import (
	"database/sql"
	"path/filepath"
	"time"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	"github.com/pkg/errors"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// Entry is one finished (or abandoned) workflow.
type Entry struct {
	ID          string
	Kind        string
	Target      string
	Description string
	FinalState  string
	Reason      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

type Journal interface {
	Record(entry Entry) error
	// List returns at most limit entries, newest first. A limit of zero or
	// less returns everything.
	List(limit int) ([]Entry, error)
	Close() error
}

type sqliteJournal struct {
	conn   *sql.DB
	path   string
	logger boshlog.Logger
	logTag string
}

// NewSQLiteJournal opens or creates the journal database at path and
// applies any pending migrations.
func NewSQLiteJournal(fs boshsys.FileSystem, path string, logger boshlog.Logger) (Journal, error) {
	if path != ":memory:" {
		err := fs.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, errors.Wrapf(err, "creating journal directory for %s", path)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening journal")
	}
	// a single connection keeps ":memory:" databases alive between queries
	conn.SetMaxOpenConns(1)

	j := &sqliteJournal{conn: conn, path: path, logger: logger, logTag: "SQLiteJournal"}

	err = j.migrate()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrating journal")
	}

	return j, nil
}

func (j *sqliteJournal) Record(entry Entry) error {
	j.logger.Debug(j.logTag, "Recording workflow '%s' (%s on '%s') as %s", entry.ID, entry.Kind, entry.Target, entry.FinalState)

	_, err := j.conn.Exec(`
		INSERT INTO workflows (id, kind, target, description, final_state, reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			final_state = excluded.final_state,
			reason = excluded.reason,
			finished_at = excluded.finished_at
	`,
		entry.ID,
		entry.Kind,
		entry.Target,
		entry.Description,
		entry.FinalState,
		entry.Reason,
		entry.StartedAt.UTC().UnixNano(),
		entry.FinishedAt.UTC().UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "recording workflow %s", entry.ID)
	}

	return nil
}

func (j *sqliteJournal) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.conn.Query(`
		SELECT id, kind, target, description, final_state, reason, started_at, finished_at
		FROM workflows
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing workflows")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var startedAt, finishedAt int64

		err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.Target,
			&entry.Description,
			&entry.FinalState,
			&entry.Reason,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "reading workflow row")
		}

		entry.StartedAt = time.Unix(0, startedAt).UTC()
		entry.FinishedAt = time.Unix(0, finishedAt).UTC()
		entries = append(entries, entry)
	}

	return entries, errors.Wrap(rows.Err(), "listing workflows")
}

func (j *sqliteJournal) Close() error {
	return j.conn.Close()
}

func (j *sqliteJournal) migrate() error {
	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = j.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		j.logger.Info(j.logTag, "Applying journal migration v%d to %s", v, j.path)

		tx, err := j.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "migration v%d", v)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS workflows (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    target TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    final_state TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_finished ON workflows(finished_at);
`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_target ON workflows(target);`,
}
