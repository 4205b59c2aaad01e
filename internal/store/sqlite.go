package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/foodguide/stallsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  queries
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: queries{b: sq.StatementBuilder.PlaceholderFormat(sq.Question)}}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stalls (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	cuisine           TEXT NOT NULL,
	cuisine_label     TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	episode_number    TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	opening_times     TEXT NOT NULL DEFAULT '',
	dish_name         TEXT NOT NULL DEFAULT '',
	price             TEXT NOT NULL DEFAULT '',
	rating_original   INTEGER,
	rating_moderated  INTEGER,
	youtube_title     TEXT NOT NULL DEFAULT '',
	youtube_video_url TEXT,
	youtube_video_id  TEXT,
	lat               REAL NOT NULL DEFAULT 0,
	lng               REAL NOT NULL DEFAULT 0,
	time_categories   TEXT NOT NULL DEFAULT '[]',
	awards            TEXT NOT NULL DEFAULT '[]',
	added_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	last_scraped_at   DATETIME,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	status            TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_stalls_cuisine ON stalls(cuisine);
CREATE INDEX IF NOT EXISTS idx_stalls_status ON stalls(status);

CREATE TABLE IF NOT EXISTS stall_locations (
	id                TEXT PRIMARY KEY,
	stall_id          TEXT NOT NULL REFERENCES stalls(id),
	address           TEXT NOT NULL DEFAULT '',
	lat               REAL NOT NULL DEFAULT 0,
	lng               REAL NOT NULL DEFAULT 0,
	youtube_video_url TEXT,
	status            TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_stall_locations_stall_id ON stall_locations(stall_id);

CREATE TABLE IF NOT EXISTS sync_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	mode           TEXT NOT NULL,
	trigger_source TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListStalls(ctx context.Context, filter StallFilter) ([]model.StallRecord, error) {
	query, args, err := s.q.listStalls(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list stalls")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stalls")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StallRecord
	for rows.Next() {
		st, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate stalls")
}

// ApplyPlan writes every op and the new sync state in one transaction.
func (s *SQLiteStore) ApplyPlan(ctx context.Context, ops []model.StallOp, state map[string]string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			stmts, err := s.q.opStatements(op, now)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if _, err := execSqlizer(ctx, tx, stmt); err != nil {
					return eris.Wrapf(err, "sqlite: %s stall %s", op.Kind, op.Stall.Slug)
				}
			}
		}
		for key, value := range state {
			if _, err := execSqlizer(ctx, tx, s.q.setState(key, value, now)); err != nil {
				return eris.Wrapf(err, "sqlite: set state %s", key)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) FillVideo(ctx context.Context, stallID, videoURL, videoID, title string) (bool, error) {
	stallUpd, locUpd := s.q.fillVideo(stallID, videoURL, videoID, title, time.Now().UTC())
	var filled bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := execSqlizer(ctx, tx, stallUpd)
		if err != nil {
			return eris.Wrapf(err, "sqlite: fill video %s", stallID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		filled = n > 0
		if !filled {
			return nil
		}
		if _, err := execSqlizer(ctx, tx, locUpd); err != nil {
			return eris.Wrapf(err, "sqlite: fill location video %s", stallID)
		}
		return nil
	})
	return filled, err
}

func (s *SQLiteStore) SetCoordinates(ctx context.Context, stallID string, lat, lng float64) error {
	stallUpd, locUpd := s.q.setCoordinates(stallID, lat, lng, time.Now().UTC())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := execSqlizer(ctx, tx, stallUpd)
		if err != nil {
			return eris.Wrapf(err, "sqlite: set coordinates %s", stallID)
		}
		if err := checkRowsAffected(res, "stall", stallID); err != nil {
			return err
		}
		_, err = execSqlizer(ctx, tx, locUpd)
		return eris.Wrapf(err, "sqlite: set location coordinates %s", stallID)
	})
}

func (s *SQLiteStore) CountUnresolved(ctx context.Context) (int, error) {
	return s.count(ctx, s.q.countUnresolved(), "unresolved")
}

func (s *SQLiteStore) CountUngeocoded(ctx context.Context) (int, error) {
	return s.count(ctx, s.q.countUngeocoded(), "ungeocoded")
}

// GetState returns "" for a missing key.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	query, args, err := s.q.getState(key).ToSql()
	if err != nil {
		return "", eris.Wrap(err, "sqlite: build get state")
	}
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get state %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, summary *model.SyncRunSummary) error {
	ins, err := s.q.recordRun(summary)
	if err != nil {
		return err
	}
	_, err = execSqlizer(ctx, s.db, ins)
	return eris.Wrapf(err, "sqlite: record run %s", summary.RunID)
}

func (s *SQLiteStore) count(ctx context.Context, sel sq.SelectBuilder, what string) (int, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: build count %s", what)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", what)
	}
	return n, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execSqlizer(ctx context.Context, ex execer, stmt sq.Sqlizer) (sql.Result, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "build statement")
	}
	return ex.ExecContext(ctx, query, args...)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
