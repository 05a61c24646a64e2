// Package assessment is the assessment state machine: eligibility screening,
// answer persistence, snapshot edits, submission with scoring and the
// reviewer decision. Every mutation is one transaction that checks the
// caller's version token and writes with a compare-and-swap.
//
// Guards run in a fixed order so callers get a stable error: assessment
// status first, then the version token, then the caller's right to touch the
// lead, then eligibility.
package assessment

import (
	"context"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/common/observability"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/store"
)

type Options struct {
	Notifier notify.Notifier
	// ReviewerEmail receives assessment_submitted notifications.
	ReviewerEmail string
	Obs           *observability.Observability
	Now           func() time.Time
}

type Service struct {
	store         store.Store
	notifier      notify.Notifier
	reviewerEmail string
	obs           *observability.Observability
	logger        logger.Logger
	now           func() time.Time
}

func NewService(st store.Store, opts Options, log logger.Logger) *Service {
	s := &Service{
		store:         st,
		notifier:      opts.Notifier,
		reviewerEmail: opts.ReviewerEmail,
		obs:           opts.Obs,
		logger:        log.WithFields(map[string]interface{}{"component": "assessment"}),
		now:           opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// View is an assessment with its question snapshot.
type View struct {
	Assessment *models.Assessment         `json:"assessment"`
	Questions  []*models.SnapshotQuestion `json:"questions"`
}

// Get returns the assessment and its snapshot. Assessors can only read
// assessments of leads assigned to them.
func (s *Service) Get(ctx context.Context, actor *auth.Identity, id string) (*View, error) {
	if err := auth.Authorize(actor, "read assessment"); err != nil {
		return nil, err
	}
	a, err := s.store.Assessments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lead, err := s.store.Leads().Get(ctx, a.LeadID)
	if err != nil {
		return nil, err
	}
	if err := canTouch(actor, lead); err != nil {
		return nil, err
	}
	qs, err := s.store.Questions().ListSnapshot(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return &View{Assessment: a, Questions: qs}, nil
}

// loadForEdit reads the assessment inside tx and runs the status, version and
// caller guards in that order. statusGuard is snapshot.RequireDraft for answer
// edits and snapshot.RequireEditable for question edits.
func loadForEdit(ctx context.Context, tx store.Tx, actor *auth.Identity, id string, expected int64,
	statusGuard func(*models.Assessment) error) (*models.Assessment, *models.Lead, error) {
	a, err := tx.Assessments().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := statusGuard(a); err != nil {
		return nil, nil, err
	}
	if err := leads.CheckOptimisticLock(models.EntityAssessment, a.ID, a, expected); err != nil {
		return nil, nil, err
	}
	lead, err := tx.Leads().Get(ctx, a.LeadID)
	if err != nil {
		return nil, nil, err
	}
	if err := canTouch(actor, lead); err != nil {
		return nil, nil, err
	}
	return a, lead, nil
}

// canTouch lets reviewers act on any lead and assessors only on their own.
func canTouch(actor *auth.Identity, lead *models.Lead) error {
	if actor.Is(models.RoleReviewer) {
		return nil
	}
	if lead.AssignedAssessorID == nil || *lead.AssignedAssessorID != actor.UserID {
		return errors.NewInsufficientPermissionsError(string(actor.Role), "edit assessment of unassigned lead")
	}
	return nil
}

func requireEligible(a *models.Assessment) error {
	if a.Eligibility != models.EligibilityEligible {
		return errors.NewEligibilityNotMetError("eligibility: " + string(a.Eligibility)).
			WithMetadata("eligibility", string(a.Eligibility))
	}
	return nil
}

// save writes a with a compare-and-swap on expected.
func (s *Service) save(ctx context.Context, tx store.Tx, a *models.Assessment, expected int64) error {
	a.UpdatedAt = s.now()
	err := tx.Assessments().Update(ctx, a, expected)
	if errors.Is(err, errors.ErrCodeConcurrentModification) {
		metrics.OptimisticLockConflicts.WithLabelValues(models.EntityAssessment).Inc()
	}
	return err
}

func (s *Service) recordTransition(ctx context.Context, from, to models.AssessmentStatus) {
	metrics.StatusTransitions.WithLabelValues(models.EntityAssessment, string(from), string(to)).Inc()
	if s.obs != nil {
		s.obs.RecordTransition(ctx, string(from), string(to))
	}
}
