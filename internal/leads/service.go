// Package leads is the lead registry: lead creation with its assessment and
// question snapshot, assessor assignment, the lead status graph, registry
// enrichment and payment confirmation.
package leads

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/companyregistry"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/common/validation"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/snapshot"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
)

var errNoRegistry = stderrors.New("registry client is not configured")

// RegistryClient is satisfied by companyregistry.Client.
type RegistryClient interface {
	GetProfile(ctx context.Context, companyID string) (*companyregistry.Profile, bool, error)
	Invalidate(ctx context.Context, companyID string) error
}

// Indexer receives every committed lead. Failures are logged only.
type Indexer interface {
	IndexLead(ctx context.Context, lead *models.Lead) error
}

type Options struct {
	Registry  RegistryClient
	Index     Indexer
	Notifier  notify.Notifier
	Validator *validation.Validator
	Now       func() time.Time
}

type Service struct {
	store     store.Store
	registry  RegistryClient
	index     Indexer
	notifier  notify.Notifier
	validator *validation.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewService(st store.Store, opts Options, log logger.Logger) *Service {
	s := &Service{
		store:     st,
		registry:  opts.Registry,
		index:     opts.Index,
		notifier:  opts.Notifier,
		validator: opts.Validator,
		logger:    log.WithFields(map[string]interface{}{"component": "leads"}),
		now:       opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type CreateLeadInput struct {
	CompanyID    string `json:"companyId" validate:"required,alphanum,min=5,max=32"`
	CompanyName  string `json:"companyName" validate:"required,max=200"`
	ContactName  string `json:"contactName" validate:"required,max=120"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
	ContactPhone string `json:"contactPhone,omitempty" validate:"omitempty,e164"`
}

func (in *CreateLeadInput) normalize() {
	in.CompanyID = strings.ToUpper(strings.TrimSpace(in.CompanyID))
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
}

// Created is a new lead with its draft assessment and forked snapshot.
type Created struct {
	Lead       *models.Lead               `json:"lead"`
	Assessment *models.Assessment         `json:"assessment"`
	Questions  []*models.SnapshotQuestion `json:"questions"`
}

// CreateLead registers a company. The lead, its assessment, the snapshot
// fork and the audit row commit together.
func (s *Service) CreateLead(ctx context.Context, actor *auth.Identity, in CreateLeadInput) (*Created, error) {
	if err := auth.Authorize(actor, "create lead", models.RoleReviewer); err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.validator.ValidateStruct(in); err != nil {
		return nil, err
	}

	var out *Created
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.createInTx(ctx, tx, in, models.LeadSourceReviewer, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead created", map[string]interface{}{
		"leadId":    out.Lead.LeadID,
		"companyId": out.Lead.CompanyID,
		"questions": len(out.Questions),
	})
	metrics.StatusTransitions.WithLabelValues(models.EntityLead, "", string(models.LeadStatusNew)).Inc()
	s.reindex(ctx, out.Lead)
	return out, nil
}

func (s *Service) createInTx(ctx context.Context, tx store.Tx, in CreateLeadInput, source models.LeadSource, actorID string) (*Created, error) {
	now := s.now()

	leadID, err := GenerateLeadID(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		ID:           uuid.New().String(),
		LeadID:       leadID,
		CompanyID:    in.CompanyID,
		CompanyName:  in.CompanyName,
		Status:       models.LeadStatusNew,
		ContactName:  in.ContactName,
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Source:       source,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if err := tx.Leads().Create(ctx, lead); err != nil {
		return nil, err
	}

	a := &models.Assessment{
		ID:                 uuid.New().String(),
		LeadID:             lead.ID,
		Status:             models.AssessmentStatusDraft,
		Eligibility:        models.EligibilityUnset,
		EligibilityAnswers: models.EligibilityAnswers{},
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}
	if err := tx.Assessments().Create(ctx, a); err != nil {
		return nil, err
	}

	questions, err := snapshot.Fork(ctx, tx, a.ID, now)
	if err != nil {
		return nil, err
	}

	err = audit.Write(ctx, tx, models.AuditEntry{
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Action:     audit.ActionLeadCreated,
		ActorID:    actorID,
		NewStatus:  string(lead.Status),
		Metadata:   map[string]interface{}{"leadId": lead.LeadID, "source": string(source), "assessmentId": a.ID},
	}, now)
	if err != nil {
		return nil, err
	}
	return &Created{Lead: lead, Assessment: a, Questions: questions}, nil
}

func (s *Service) GetLead(ctx context.Context, actor *auth.Identity, id string) (*models.Lead, error) {
	if err := auth.Authorize(actor, "read lead"); err != nil {
		return nil, err
	}
	lead, err := s.store.Leads().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(models.RoleAssessor) && !assignedTo(lead, actor.UserID) {
		return nil, errors.NewInsufficientPermissionsError(string(actor.Role), "read unassigned lead")
	}
	return lead, nil
}

// ListLeads lists leads newest first. Assessors only see their own.
func (s *Service) ListLeads(ctx context.Context, actor *auth.Identity, f models.LeadFilter) ([]*models.Lead, error) {
	if err := auth.Authorize(actor, "list leads"); err != nil {
		return nil, err
	}
	if actor.Is(models.RoleAssessor) {
		f.AssessorID = actor.UserID
	}
	return s.store.Leads().List(ctx, f)
}

// AssignAssessor sets the lead's assessor and moves a NEW lead to ASSIGNED.
// Reassigning an ASSIGNED lead keeps its status.
func (s *Service) AssignAssessor(ctx context.Context, actor *auth.Identity, leadID, assessorID string, expectedVersion int64) (*models.Lead, error) {
	if err := auth.Authorize(actor, "assign assessor", models.RoleReviewer); err != nil {
		return nil, err
	}

	var (
		lead     *models.Lead
		assessor *models.User
		from     models.LeadStatus
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if lead, err = tx.Leads().Get(ctx, leadID); err != nil {
			return err
		}
		if err := CheckOptimisticLock(models.EntityLead, lead.ID, lead, expectedVersion); err != nil {
			return err
		}
		from = lead.Status
		if from != models.LeadStatusNew && from != models.LeadStatusAssigned {
			return errors.NewInvalidStatusTransitionError("lead", string(from), string(models.LeadStatusAssigned))
		}

		if assessor, err = tx.Users().Get(ctx, assessorID); err != nil {
			return err
		}
		if assessor.Role != models.RoleAssessor {
			return errors.NewInvalidInputError("user " + assessorID + " is not an assessor")
		}
		if !assessor.IsActive {
			return errors.NewUserInactiveError(assessorID)
		}

		var previous string
		if lead.AssignedAssessorID != nil {
			previous = *lead.AssignedAssessorID
		}
		now := s.now()
		lead.AssignedAssessorID = &assessor.ID
		lead.Status = models.LeadStatusAssigned
		lead.UpdatedAt = now
		if err := tx.Leads().Update(ctx, lead, expectedVersion); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityLead,
			EntityID:   lead.ID,
			Action:     audit.ActionLeadAssigned,
			ActorID:    actor.UserID,
			OldStatus:  string(from),
			NewStatus:  string(lead.Status),
			Metadata:   map[string]interface{}{"assessorId": assessor.ID, "previousAssessorId": previous},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if from != lead.Status {
		metrics.StatusTransitions.WithLabelValues(models.EntityLead, string(from), string(lead.Status)).Inc()
	}
	s.reindex(ctx, lead)
	s.notifier.Dispatch(notify.TemplateAssessorAssigned,
		notify.Recipient{Email: assessor.Email, Phone: assessor.Phone, Name: assessor.Name},
		map[string]interface{}{"leadId": lead.LeadID, "companyName": lead.CompanyName})
	return lead, nil
}

// UpdateLeadStatus moves a lead one step along the status graph.
func (s *Service) UpdateLeadStatus(ctx context.Context, actor *auth.Identity, leadID string, to models.LeadStatus, expectedVersion int64, remark string) (*models.Lead, error) {
	if err := auth.Authorize(actor, "update lead status", models.RoleReviewer); err != nil {
		return nil, err
	}

	var (
		lead *models.Lead
		from models.LeadStatus
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if lead, err = tx.Leads().Get(ctx, leadID); err != nil {
			return err
		}
		if err := CheckOptimisticLock(models.EntityLead, lead.ID, lead, expectedVersion); err != nil {
			return err
		}
		from = lead.Status
		return Advance(ctx, tx, lead, to, actor.UserID, remark, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead status changed", map[string]interface{}{"leadId": lead.LeadID, "from": from, "to": to})
	s.reindex(ctx, lead)
	return lead, nil
}

// Advance applies a validated status change to lead inside tx, guarded by
// the version lead was read at, and writes the audit row. Assessment
// transitions call it to keep the lead in step.
func Advance(ctx context.Context, tx store.Tx, lead *models.Lead, to models.LeadStatus, actorID, remark string, now time.Time) error {
	if err := ValidateTransition(lead.Status, to); err != nil {
		return err
	}
	if to == models.LeadStatusAssigned && lead.AssignedAssessorID == nil {
		return errors.NewInvalidInputError("lead has no assessor to be assigned to")
	}

	from := lead.Status
	lead.Status = to
	lead.UpdatedAt = now
	if err := tx.Leads().Update(ctx, lead, lead.Version); err != nil {
		lead.Status = from
		return err
	}
	metrics.StatusTransitions.WithLabelValues(models.EntityLead, string(from), string(to)).Inc()
	return audit.Write(ctx, tx, models.AuditEntry{
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Action:     audit.ActionLeadStatusChanged,
		ActorID:    actorID,
		OldStatus:  string(from),
		NewStatus:  string(to),
		Remark:     remark,
	}, now)
}

type PaymentConfirmation struct {
	LeadID     string  `json:"leadId"`
	PaymentRef string  `json:"paymentRef"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

const paymentAttempts = 3

// ConfirmPayment completes a lead from any status when the payment processor
// confirms. It is idempotent: a COMPLETED lead is returned unchanged with
// alreadyCompleted set. A concurrent lead update is retried.
func (s *Service) ConfirmPayment(ctx context.Context, p PaymentConfirmation) (lead *models.Lead, alreadyCompleted bool, err error) {
	if p.LeadID == "" || p.PaymentRef == "" {
		return nil, false, errors.NewInvalidInputError("leadId and paymentRef are required")
	}

	for attempt := 1; attempt <= paymentAttempts; attempt++ {
		var from models.LeadStatus
		err = s.store.InTx(ctx, func(tx store.Tx) error {
			var err error
			if lead, err = tx.Leads().Get(ctx, p.LeadID); err != nil {
				return err
			}
			from = lead.Status
			if from == models.LeadStatusCompleted {
				alreadyCompleted = true
				return nil
			}
			now := s.now()
			lead.Status = models.LeadStatusCompleted
			lead.UpdatedAt = now
			if err := tx.Leads().Update(ctx, lead, lead.Version); err != nil {
				return err
			}
			return audit.Write(ctx, tx, models.AuditEntry{
				EntityType: models.EntityLead,
				EntityID:   lead.ID,
				Action:     audit.ActionPaymentConfirmed,
				ActorID:    audit.SystemActor,
				OldStatus:  string(from),
				NewStatus:  string(models.LeadStatusCompleted),
				Metadata:   map[string]interface{}{"paymentRef": p.PaymentRef, "amount": p.Amount, "currency": p.Currency},
			}, now)
		})
		if errors.Is(err, errors.ErrCodeConcurrentModification) {
			s.logger.Warn("payment confirmation raced a lead update, retrying", map[string]interface{}{
				"leadId":  p.LeadID,
				"attempt": attempt,
			})
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if !alreadyCompleted {
			metrics.StatusTransitions.WithLabelValues(models.EntityLead, string(from), string(models.LeadStatusCompleted)).Inc()
			s.reindex(ctx, lead)
		}
		return lead, alreadyCompleted, nil
	}
	return nil, false, err
}

// FetchRegistryData copies the registry profile onto the lead. refresh
// bypasses the profile cache.
func (s *Service) FetchRegistryData(ctx context.Context, actor *auth.Identity, leadID string, expectedVersion int64, refresh bool) (*models.Lead, bool, error) {
	if err := auth.Authorize(actor, "fetch registry data", models.RoleReviewer, models.RoleAssessor); err != nil {
		return nil, false, err
	}
	if s.registry == nil {
		return nil, false, errors.NewRegistryUnavailableError(errNoRegistry)
	}

	current, err := s.store.Leads().Get(ctx, leadID)
	if err != nil {
		return nil, false, err
	}
	if actor.Is(models.RoleAssessor) && !assignedTo(current, actor.UserID) {
		return nil, false, errors.NewInsufficientPermissionsError(string(actor.Role), "fetch registry data for unassigned lead")
	}
	if err := CheckOptimisticLock(models.EntityLead, current.ID, current, expectedVersion); err != nil {
		return nil, false, err
	}

	if refresh {
		if err := s.registry.Invalidate(ctx, current.CompanyID); err != nil {
			s.logger.Warn("registry cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	profile, fromCache, err := s.registry.GetProfile(ctx, current.CompanyID)
	if err != nil {
		return nil, false, err
	}

	var lead *models.Lead
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if lead, err = tx.Leads().Get(ctx, leadID); err != nil {
			return err
		}
		if err := CheckOptimisticLock(models.EntityLead, lead.ID, lead, expectedVersion); err != nil {
			return err
		}
		now := s.now()
		lead.Registry = profile.Snapshot(now)
		lead.RegistryFetched = true
		lead.UpdatedAt = now
		if err := tx.Leads().Update(ctx, lead, expectedVersion); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityLead,
			EntityID:   lead.ID,
			Action:     audit.ActionRegistryFetched,
			ActorID:    actor.UserID,
			Metadata:   map[string]interface{}{"fromCache": fromCache, "companyStatus": profile.CompanyStatus},
		}, now)
	})
	if err != nil {
		return nil, false, err
	}
	s.reindex(ctx, lead)
	return lead, fromCache, nil
}

func (s *Service) reindex(ctx context.Context, lead *models.Lead) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexLead(ctx, lead); err != nil {
		s.logger.Warn("lead index update failed", map[string]interface{}{
			"leadId": lead.LeadID,
			"error":  err.Error(),
		})
	}
}

func assignedTo(lead *models.Lead, userID string) bool {
	return lead.AssignedAssessorID != nil && *lead.AssignedAssessorID == userID
}
