// Package postgres implements every driven store on a shared PostgreSQL
// database through lib/pq.
//
// The connection is opened lazily on first use and the schema is applied
// idempotently at that point. Every operation runs under a bounded timeout
// derived from the caller's context.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

const operationTimeout = 5 * time.Second

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

//go:embed schema.sql
var schemaSQL string

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is a PostgreSQL-backed implementation of every driven store.
type Store struct {
	dsn    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewStore returns a store for dsn. No connection is made until first use.
func NewStore(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", domain.ErrInvalidInput)
	}
	return &Store{dsn: dsn, openDB: sql.Open}, nil
}

// Close closes the connection pool if it was opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PersonStore returns a PersonStore backed by this store.
func (s *Store) PersonStore() driven.PersonStore {
	return &personStore{store: s}
}

// IdentifierStore returns an IdentifierStore backed by this store.
func (s *Store) IdentifierStore() driven.IdentifierStore {
	return &identifierStore{store: s}
}

// UnresolvedStore returns an UnresolvedStore backed by this store.
func (s *Store) UnresolvedStore() driven.UnresolvedStore {
	return &unresolvedStore{store: s}
}

// ActivityStore returns an ActivityStore backed by this store.
func (s *Store) ActivityStore() driven.ActivityStore {
	return &activityStore{store: s}
}

// SnapshotStore returns a SnapshotStore backed by this store.
func (s *Store) SnapshotStore() driven.SnapshotStore {
	return &snapshotStore{store: s}
}

// ensureReady opens the pool and applies the schema once.
// The schema step is detached from any caller's context so that one cancelled
// request cannot fail initialisation for the life of the process.
func (s *Store) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("opening database: %w", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
		defer cancel()
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("applying schema: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}

// op prepares one bounded operation.
func (s *Store) op(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.ensureReady(); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	return ctx, cancel, nil
}

// isUniqueViolation reports whether err is a unique violation, optionally
// of a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// params accumulates positional arguments and hands out $n markers.
type params struct {
	values []any
}

func (p *params) add(v any) string {
	p.values = append(p.values, v)
	return "$" + strconv.Itoa(len(p.values))
}

func (p *params) list(ids []string) string {
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = p.add(id)
	}
	return strings.Join(marks, ", ")
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
