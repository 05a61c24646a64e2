// Package postgres implements store.Store on database/sql with lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/store"
)

//go:embed schema.sql
var Schema string

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store runs each repository call directly on the pool; InTx binds the
// repositories to one *sql.Tx.
type Store struct {
	db *sql.DB
	q  dbtx
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.FromStorage("begin transaction", err)
	}

	if err := fn(&Store{db: s.db, q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.FromStorage("commit transaction", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Leads() store.LeadRepository { return &leadRepo{q: s.q} }
func (s *Store) Assessments() store.AssessmentRepository { return &assessmentRepo{q: s.q} }
func (s *Store) Questions() store.QuestionRepository { return &questionRepo{q: s.q} }
func (s *Store) Audit() store.AuditRepository { return &auditRepo{q: s.q} }
func (s *Store) Submissions() store.SubmissionRepository { return &submissionRepo{q: s.q} }
func (s *Store) Documents() store.DocumentRepository { return &documentRepo{q: s.q} }
func (s *Store) PortalCodes() store.PortalCodeRepository { return &portalCodeRepo{q: s.q} }
func (s *Store) Users() store.UserRepository { return &userRepo{q: s.q} }

// notFound maps sql.ErrNoRows onto a resource-specific code.
func notFound(err error, build func() *errors.StandardError, op string) error {
	if err == sql.ErrNoRows {
		return build()
	}
	return errors.FromStorage(op, err)
}

// checkAffected turns a zero-row CAS update into CONCURRENT_MODIFICATION.
func checkAffected(res sql.Result, resource, id string, expected int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.FromStorage("rows affected", err)
	}
	if n == 0 {
		return errors.NewConcurrentModificationError(resource, id, expected)
	}
	return nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("marshal jsonb column: %w", err))
	}
	return b, nil
}

func unmarshalJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewInternalError(fmt.Errorf("unmarshal jsonb column: %w", err))
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
