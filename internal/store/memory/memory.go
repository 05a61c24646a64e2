// Package memory implements store.Store in process memory. A transaction
// works on a copy of the data and swaps it in on success, so a failed unit of
// work leaves nothing behind. Used by tests and by storage.driver=memory.
package memory

import (
	"context"
	"sync"

	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"
)

type data struct {
	leadSeq     map[int]int64
	leads       map[string]*models.Lead
	assessments map[string]*models.Assessment
	templates   map[models.QuestionID]*models.QuestionTemplate
	snapshots   map[string]map[models.QuestionID]*models.SnapshotQuestion
	audit       []*models.AuditEntry
	submissions map[string]*models.OrganicSubmission
	documents   map[string]*models.Document
	portalCodes map[string]*models.PortalCode
	users       map[string]*models.User
}

func newData() *data {
	return &data{
		leadSeq:     map[int]int64{},
		leads:       map[string]*models.Lead{},
		assessments: map[string]*models.Assessment{},
		templates:   map[models.QuestionID]*models.QuestionTemplate{},
		snapshots:   map[string]map[models.QuestionID]*models.SnapshotQuestion{},
		submissions: map[string]*models.OrganicSubmission{},
		documents:   map[string]*models.Document{},
		portalCodes: map[string]*models.PortalCode{},
		users:       map[string]*models.User{},
	}
}

// clone copies the containers. Stored records are never mutated in place,
// so they are shared between copies.
func (d *data) clone() *data {
	c := &data{
		leadSeq:     make(map[int]int64, len(d.leadSeq)),
		leads:       make(map[string]*models.Lead, len(d.leads)),
		assessments: make(map[string]*models.Assessment, len(d.assessments)),
		templates:   make(map[models.QuestionID]*models.QuestionTemplate, len(d.templates)),
		snapshots:   make(map[string]map[models.QuestionID]*models.SnapshotQuestion, len(d.snapshots)),
		audit:       d.audit[:len(d.audit):len(d.audit)],
		submissions: make(map[string]*models.OrganicSubmission, len(d.submissions)),
		documents:   make(map[string]*models.Document, len(d.documents)),
		portalCodes: make(map[string]*models.PortalCode, len(d.portalCodes)),
		users:       make(map[string]*models.User, len(d.users)),
	}
	for k, v := range d.leadSeq {
		c.leadSeq[k] = v
	}
	for k, v := range d.leads {
		c.leads[k] = v
	}
	for k, v := range d.assessments {
		c.assessments[k] = v
	}
	for k, v := range d.templates {
		c.templates[k] = v
	}
	for k, m := range d.snapshots {
		inner := make(map[models.QuestionID]*models.SnapshotQuestion, len(m))
		for id, q := range m {
			inner[id] = q
		}
		c.snapshots[k] = inner
	}
	for k, v := range d.submissions {
		c.submissions[k] = v
	}
	for k, v := range d.documents {
		c.documents[k] = v
	}
	for k, v := range d.portalCodes {
		c.portalCodes[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

type runner func(fn func(d *data) error) error

// Store serialises transactions with one mutex.
type Store struct {
	mu sync.Mutex
	d  *data
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{d: newData()}
}

func (s *Store) run(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.d.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.d = work
	return nil
}

// InTx must not be called re-entrantly from fn.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.run(func(d *data) error {
		direct := func(f func(d *data) error) error { return f(d) }
		return fn(&tx{run: direct})
	})
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) Leads() store.LeadRepository { return &leadRepo{run: s.run} }

func (s *Store) Assessments() store.AssessmentRepository { return &assessmentRepo{run: s.run} }

func (s *Store) Questions() store.QuestionRepository { return &questionRepo{run: s.run} }

func (s *Store) Audit() store.AuditRepository { return &auditRepo{run: s.run} }

func (s *Store) Submissions() store.SubmissionRepository { return &submissionRepo{run: s.run} }

func (s *Store) Documents() store.DocumentRepository { return &documentRepo{run: s.run} }

func (s *Store) PortalCodes() store.PortalCodeRepository { return &portalCodeRepo{run: s.run} }

func (s *Store) Users() store.UserRepository { return &userRepo{run: s.run} }

type tx struct {
	run runner
}

func (t *tx) Leads() store.LeadRepository { return &leadRepo{run: t.run} }

func (t *tx) Assessments() store.AssessmentRepository { return &assessmentRepo{run: t.run} }

func (t *tx) Questions() store.QuestionRepository { return &questionRepo{run: t.run} }

func (t *tx) Audit() store.AuditRepository { return &auditRepo{run: t.run} }

func (t *tx) Submissions() store.SubmissionRepository { return &submissionRepo{run: t.run} }

func (t *tx) Documents() store.DocumentRepository { return &documentRepo{run: t.run} }

func (t *tx) PortalCodes() store.PortalCodeRepository { return &portalCodeRepo{run: t.run} }

func (t *tx) Users() store.UserRepository { return &userRepo{run: t.run} }
