package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/db"
	"github.com/foodguide/stallsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       queries
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		q:       queries{b: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)},
		closeFn: closeFn,
	}
}

const postgresMigration = `
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
	rating_original   INTEGER CHECK (rating_original BETWEEN 0 AND 3),
	rating_moderated  INTEGER CHECK (rating_moderated BETWEEN 0 AND 3),
	youtube_title     TEXT NOT NULL DEFAULT '',
	youtube_video_url TEXT,
	youtube_video_id  TEXT,
	lat               DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng               DOUBLE PRECISION NOT NULL DEFAULT 0,
	time_categories   TEXT NOT NULL DEFAULT '[]',
	awards            TEXT NOT NULL DEFAULT '[]',
	added_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_scraped_at   TIMESTAMPTZ,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	status            TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_stalls_cuisine ON stalls(cuisine);
CREATE INDEX IF NOT EXISTS idx_stalls_status ON stalls(status);

CREATE TABLE IF NOT EXISTS stall_locations (
	id                TEXT PRIMARY KEY,
	stall_id          TEXT NOT NULL REFERENCES stalls(id),
	address           TEXT NOT NULL DEFAULT '',
	lat               DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng               DOUBLE PRECISION NOT NULL DEFAULT 0,
	youtube_video_url TEXT,
	status            TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_stall_locations_stall_id ON stall_locations(stall_id);

CREATE TABLE IF NOT EXISTS sync_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	mode           TEXT NOT NULL,
	trigger_source TEXT NOT NULL DEFAULT '',
	summary        JSONB NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListStalls(ctx context.Context, filter StallFilter) ([]model.StallRecord, error) {
	query, args, err := s.q.listStalls(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list stalls")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stalls")
	}
	defer rows.Close()

	var out []model.StallRecord
	for rows.Next() {
		st, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate stalls")
}

// ApplyPlan writes every op and the new sync state in one transaction.
func (s *PostgresStore) ApplyPlan(ctx context.Context, ops []model.StallOp, state map[string]string) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, op := range ops {
			stmts, err := s.q.opStatements(op, now)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if _, err := execTx(ctx, tx, stmt); err != nil {
					return eris.Wrapf(err, "postgres: %s stall %s", op.Kind, op.Stall.Slug)
				}
			}
		}
		for key, value := range state {
			if _, err := execTx(ctx, tx, s.q.setState(key, value, now)); err != nil {
				return eris.Wrapf(err, "postgres: set state %s", key)
			}
		}
		return nil
	})
}

func (s *PostgresStore) FillVideo(ctx context.Context, stallID, videoURL, videoID, title string) (bool, error) {
	stallUpd, locUpd := s.q.fillVideo(stallID, videoURL, videoID, title, time.Now().UTC())
	var filled bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := execTx(ctx, tx, stallUpd)
		if err != nil {
			return eris.Wrapf(err, "postgres: fill video %s", stallID)
		}
		filled = tag.RowsAffected() > 0
		if !filled {
			return nil
		}
		if _, err := execTx(ctx, tx, locUpd); err != nil {
			return eris.Wrapf(err, "postgres: fill location video %s", stallID)
		}
		return nil
	})
	return filled, err
}

func (s *PostgresStore) SetCoordinates(ctx context.Context, stallID string, lat, lng float64) error {
	stallUpd, locUpd := s.q.setCoordinates(stallID, lat, lng, time.Now().UTC())
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := execTx(ctx, tx, stallUpd)
		if err != nil {
			return eris.Wrapf(err, "postgres: set coordinates %s", stallID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Errorf("stall not found: %s", stallID)
		}
		_, err = execTx(ctx, tx, locUpd)
		return eris.Wrapf(err, "postgres: set location coordinates %s", stallID)
	})
}

func (s *PostgresStore) CountUnresolved(ctx context.Context) (int, error) {
	return s.count(ctx, s.q.countUnresolved(), "unresolved")
}

func (s *PostgresStore) CountUngeocoded(ctx context.Context) (int, error) {
	return s.count(ctx, s.q.countUngeocoded(), "ungeocoded")
}

// GetState returns "" for a missing key.
func (s *PostgresStore) GetState(ctx context.Context, key string) (string, error) {
	query, args, err := s.q.getState(key).ToSql()
	if err != nil {
		return "", eris.Wrap(err, "postgres: build get state")
	}
	var value string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get state %s", key)
	}
	return value, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, summary *model.SyncRunSummary) error {
	ins, err := s.q.recordRun(summary)
	if err != nil {
		return err
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build record run")
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: record run %s", summary.RunID)
}

func (s *PostgresStore) count(ctx context.Context, sel sq.SelectBuilder, what string) (int, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: build count %s", what)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", what)
	}
	return int(n), nil
}

func execTx(ctx context.Context, tx pgx.Tx, stmt sq.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, eris.Wrap(err, "build statement")
	}
	return tx.Exec(ctx, query, args...)
}
