package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jirevwe/threadpool"
	"github.com/jirevwe/threadpool/packer"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

const (
	// rfc3339Milli is like time.RFC3339Nano, but with millisecond precision
	rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	createEvents = `create table if not exists events (
			id TEXT not null primary key,
			item_id TEXT not null default '',
			worker_id TEXT not null default '',
			kind TEXT not null,
			payload BLOB,
			created_at TEXT not null
		) strict;`

	createEventsItemIndex = `create index if not exists idx_events_item_id on events (item_id);`

	createEventsKindIndex = `create index if not exists idx_events_kind on events (kind);`
)

// Record is one persisted pool event.
type Record struct {
	Id        string `db:"id"`
	ItemId    string `db:"item_id"`
	WorkerId  string `db:"worker_id"`
	Kind      string `db:"kind"`
	Payload   []byte `db:"payload"`
	CreatedAt string `db:"created_at"`
}

// Detail is the part of an event that has no column of its own.
type Detail struct {
	Duration time.Duration `json:"duration_ns,omitempty"`
	Panic    string        `json:"panic,omitempty"`
}

func (r *Record) Detail() (Detail, error) {
	var d Detail
	if len(r.Payload) == 0 {
		return d, nil
	}

	err := packer.DecodeMessage(r.Payload, &d)
	return d, err
}

func (r *Record) CreatedTime() time.Time {
	t, err := time.Parse(rfc3339Milli, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

type kindCount struct {
	Kind  string `db:"kind"`
	Count int    `db:"count"`
}

// Sqlite keeps a journal of pool events in a SQLite database. It is a
// threadpool.Observer.
type Sqlite struct {
	logger *slog.Logger
	db     *sqlx.DB
}

var _ threadpool.Observer = (*Sqlite)(nil)

func NewSqlite(dbPath string, logger *slog.Logger) (*Sqlite, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, err
	}

	// every worker writes here, one connection keeps sqlite from reporting busy
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_size_limit = 67108864;")
	if err != nil {
		return nil, closeOnError(db, err)
	}

	_, err = db.Exec("PRAGMA cache_size = 2000;")
	if err != nil {
		return nil, closeOnError(db, err)
	}

	s := &Sqlite{db: db, logger: logger}

	ctx := context.Background()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, query := range []string{createEvents, createEventsItemIndex, createEventsKindIndex} {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, closeOnError(db, err)
	}

	return s, nil
}

// Record writes ev to the journal
func (s *Sqlite) Record(ctx context.Context, ev threadpool.Event) error {
	payload, err := packer.EncodeMessage(Detail{Duration: ev.Duration, Panic: ev.Panic})
	if err != nil {
		return fmt.Errorf("cannot encode event detail: %w", err)
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		insertQuery := `insert into events (id, item_id, worker_id, kind, payload, created_at) values ($1, $2, $3, $4, $5, $6)`
		_, innerErr := tx.ExecContext(ctx, insertQuery, ulid.Make().String(), ev.ItemID, ev.WorkerID, string(ev.Kind), payload, at.UTC().Format(rfc3339Milli))
		return innerErr
	})
}

// Observe records ev, logging the failure if it could not be written.
func (s *Sqlite) Observe(ev threadpool.Event) {
	if err := s.Record(context.Background(), ev); err != nil {
		s.logger.Error(fmt.Sprintf("failed to journal %s event", ev.Kind), "item", ev.ItemID, "worker", ev.WorkerID, "error", err)
	}
}

// Events returns the journal of one work item, oldest first
func (s *Sqlite) Events(ctx context.Context, itemId string) (records []Record, err error) {
	err = s.db.SelectContext(ctx, &records, `select * from events where item_id = $1 order by id`, itemId)
	return records, err
}

// EventsByKind returns every event of the given kind, oldest first
func (s *Sqlite) EventsByKind(ctx context.Context, kind threadpool.EventKind) (records []Record, err error) {
	err = s.db.SelectContext(ctx, &records, `select * from events where kind = $1 order by id`, string(kind))
	return records, err
}

// CountByKind counts the journalled events per kind
func (s *Sqlite) CountByKind(ctx context.Context) (map[threadpool.EventKind]int, error) {
	var rows []kindCount
	if err := s.db.SelectContext(ctx, &rows, `select kind, count(*) as count from events group by kind`); err != nil {
		return nil, err
	}

	counts := make(map[threadpool.EventKind]int, len(rows))
	for _, row := range rows {
		counts[threadpool.EventKind(row.Kind)] = row.Count
	}
	return counts, nil
}

// Truncate clears the journal
func (s *Sqlite) Truncate(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `delete from events`)
		return err
	})
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) inTx(ctx context.Context, cb func(*sqlx.Tx) error) (err error) {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("cannot start tx: %w", beginErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			_ = rollback(tx, nil)
			panic(rec)
		}
	}()

	if err = cb(tx); err != nil {
		return rollback(tx, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("cannot commit tx: %w", commitErr)
	}

	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return fmt.Errorf("cannot roll back tx after error (tx error: %v), original error: %w", rollbackErr, err)
	}
	return err
}

func closeOnError(db *sqlx.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("cannot close db after error (close error: %v), original error: %w", closeErr, err)
	}
	return err
}
