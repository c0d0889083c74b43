// Package journal persists every dispatched command and its outcome to
// SQLite. A Journal is attached to a grid as a bus observer.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/log"
)

// DefaultLimit caps List when the filter sets no limit.
const DefaultLimit = 100

const writeTimeout = 5 * time.Second

// Entry is one journaled command.
type Entry struct {
	Seq          int64           `json:"seq"`
	Kind         command.Kind    `json:"kind"`
	Name         command.Name    `json:"name"`
	Target       string          `json:"target"`
	Origin       string          `json:"origin,omitempty"`
	Outcome      command.Outcome `json:"outcome"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	DispatchedAt time.Time       `json:"dispatched_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind     command.Kind
	Target   string
	Origin   string
	Outcome  command.Outcome
	AfterSeq int64
	Limit    int
}

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	failed int
}

// New returns a journal writing to db, which must have been opened with
// storage.OpenSQLite.
func New(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = log.WithComponent("journal")
	}
	return &Journal{db: db, logger: logger, now: time.Now}
}

// Observe records cmd. It matches bus.Observer; write failures are logged
// and counted, never returned to the dispatcher.
func (j *Journal) Observe(cmd command.Command, outcome command.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.Record(ctx, cmd, outcome); err != nil {
		j.mu.Lock()
		j.failed++
		j.mu.Unlock()
		j.logger.Error("journal write failed", "command", cmd.String(), "error", err)
	}
}

// Failures returns how many Observe calls could not be written.
func (j *Journal) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed
}

// Record writes one entry.
func (j *Journal) Record(ctx context.Context, cmd command.Command, outcome command.Outcome) error {
	var payload any
	if cmd.Payload != nil {
		b, err := json.Marshal(cmd.Payload)
		if err != nil {
			j.logger.Debug("payload not journaled", "command", cmd.String(), "error", err)
		} else {
			payload = string(b)
		}
	}

	dispatched := cmd.Timestamp
	if dispatched.IsZero() {
		dispatched = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO command_journal(kind, name, target, origin, outcome, payload, dispatched_at, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`,
		string(cmd.Kind), string(cmd.Name), cmd.TargetID, cmd.Origin, string(outcome), payload,
		dispatched.UTC().Format(time.RFC3339Nano), j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List returns entries matching f, oldest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		where = append(where, clause)
		args = append(args, v)
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.Target != "" {
		add("target = ?", f.Target)
	}
	if f.Origin != "" {
		add("origin = ?", f.Origin)
	}
	if f.Outcome != "" {
		add("outcome = ?", string(f.Outcome))
	}
	if f.AfterSeq > 0 {
		add("seq > ?", f.AfterSeq)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := "SELECT seq, kind, name, target, origin, outcome, payload, dispatched_at FROM command_journal"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq ASC LIMIT ?;"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			kind, name string
			outcome    string
			payload    sql.NullString
			at         string
		)
		if err := rows.Scan(&e.Seq, &kind, &name, &e.Target, &e.Origin, &outcome, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = command.Kind(kind)
		e.Name = command.Name(name)
		e.Outcome = command.Outcome(outcome)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		if e.DispatchedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse dispatched_at of entry %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of journaled entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_journal;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep entries and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}
	res, err := j.db.ExecContext(ctx, `
DELETE FROM command_journal
WHERE seq NOT IN (SELECT seq FROM command_journal ORDER BY seq DESC LIMIT ?);
`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
