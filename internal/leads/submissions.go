package leads

import (
	"context"
	"strings"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
)

type SubmissionInput struct {
	CompanyID     string `json:"companyId" validate:"required,alphanum,min=5,max=32"`
	CompanyName   string `json:"companyName" validate:"required,max=200"`
	ContactName   string `json:"contactName" validate:"required,max=120"`
	ContactEmail  string `json:"contactEmail" validate:"required,email"`
	ContactPhone  string `json:"contactPhone,omitempty" validate:"omitempty,e164"`
	EmailVerified bool   `json:"emailVerified"`
}

// CreateSubmission queues a public lead candidate as PENDING.
func (s *Service) CreateSubmission(ctx context.Context, in SubmissionInput) (*models.OrganicSubmission, error) {
	in.CompanyID = strings.ToUpper(strings.TrimSpace(in.CompanyID))
	in.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))
	if err := s.validator.ValidateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &models.OrganicSubmission{
		ID:            uuid.New().String(),
		CompanyID:     in.CompanyID,
		CompanyName:   strings.TrimSpace(in.CompanyName),
		ContactName:   strings.TrimSpace(in.ContactName),
		ContactEmail:  in.ContactEmail,
		ContactPhone:  strings.TrimSpace(in.ContactPhone),
		EmailVerified: in.EmailVerified,
		Status:        models.SubmissionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Submissions().Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// TriageSubmission approves or rejects a PENDING submission.
func (s *Service) TriageSubmission(ctx context.Context, actor *auth.Identity, id string, approve bool, remark string) (*models.OrganicSubmission, error) {
	if err := auth.Authorize(actor, "triage submission", models.RoleReviewer); err != nil {
		return nil, err
	}
	to := models.SubmissionRejected
	if approve {
		to = models.SubmissionApproved
	}

	var sub *models.OrganicSubmission
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if sub, err = tx.Submissions().Get(ctx, id); err != nil {
			return err
		}
		if sub.Status != models.SubmissionPending {
			return errors.NewInvalidStatusTransitionError("submission", string(sub.Status), string(to))
		}
		if approve && !sub.EmailVerified {
			return errors.NewInvalidInputError("submission email is not verified")
		}
		if err := tx.Submissions().UpdateStatus(ctx, id, models.SubmissionPending, to, nil); err != nil {
			return err
		}
		sub.Status = to
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntitySubmission,
			EntityID:   id,
			Action:     audit.ActionSubmissionTriaged,
			ActorID:    actor.UserID,
			OldStatus:  string(models.SubmissionPending),
			NewStatus:  string(to),
			Remark:     remark,
		}, s.now())
	})
	if err != nil {
		return nil, err
	}
	metrics.StatusTransitions.WithLabelValues(models.EntitySubmission, string(models.SubmissionPending), string(to)).Inc()
	return sub, nil
}

// ConvertSubmission turns an APPROVED, email-verified submission into a lead.
// The lead and the submission's CONVERTED mark commit together, so a
// submission converts at most once.
func (s *Service) ConvertSubmission(ctx context.Context, actor *auth.Identity, id string) (*Created, error) {
	if err := auth.Authorize(actor, "convert submission", models.RoleReviewer); err != nil {
		return nil, err
	}

	var out *Created
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sub, err := tx.Submissions().Get(ctx, id)
		if err != nil {
			return err
		}
		if sub.Status != models.SubmissionApproved {
			return errors.NewInvalidStatusTransitionError("submission", string(sub.Status), string(models.SubmissionConverted))
		}
		if !sub.EmailVerified {
			return errors.NewInvalidInputError("submission email is not verified")
		}

		in := CreateLeadInput{
			CompanyID:    sub.CompanyID,
			CompanyName:  sub.CompanyName,
			ContactName:  sub.ContactName,
			ContactEmail: sub.ContactEmail,
			ContactPhone: sub.ContactPhone,
		}
		in.normalize()
		if err := s.validator.ValidateStruct(in); err != nil {
			return err
		}

		if out, err = s.createInTx(ctx, tx, in, models.LeadSourceOrganic, actor.UserID); err != nil {
			return err
		}
		if err := tx.Submissions().UpdateStatus(ctx, id, models.SubmissionApproved, models.SubmissionConverted, &out.Lead.ID); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntitySubmission,
			EntityID:   id,
			Action:     audit.ActionSubmissionConverted,
			ActorID:    actor.UserID,
			OldStatus:  string(models.SubmissionApproved),
			NewStatus:  string(models.SubmissionConverted),
			Metadata:   map[string]interface{}{"leadId": out.Lead.LeadID},
		}, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("submission converted", map[string]interface{}{"submissionId": id, "leadId": out.Lead.LeadID})
	metrics.StatusTransitions.WithLabelValues(models.EntityLead, "", string(models.LeadStatusNew)).Inc()
	s.reindex(ctx, out.Lead)
	return out, nil
}
