package assessment

import (
	"context"
	"strings"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/scoring"
	"ipo-readiness/internal/store"
)

// SubmitAssessment scores the assessment and moves it DRAFT -> SUBMITTED.
// Either every effect lands (status, scores, frozen snapshot, lead moved to
// IN_REVIEW, audit row) or none does.
func (s *Service) SubmitAssessment(ctx context.Context, actor *auth.Identity, id string, expectedVersion int64) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "submit assessment", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}

	var (
		a      *models.Assessment
		lead   *models.Lead
		result scoring.Result
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, err = tx.Assessments().Get(ctx, id); err != nil {
			return err
		}
		if a.Status != models.AssessmentStatusDraft {
			return errors.NewAssessmentAlreadySubmittedError(a.ID, string(a.Status))
		}
		if err := leads.CheckOptimisticLock(models.EntityAssessment, a.ID, a, expectedVersion); err != nil {
			return err
		}
		if lead, err = tx.Leads().Get(ctx, a.LeadID); err != nil {
			return err
		}
		if err := canTouch(actor, lead); err != nil {
			return err
		}
		if err := requireEligible(a); err != nil {
			return err
		}

		qs, err := tx.Questions().ListSnapshot(ctx, id, "")
		if err != nil {
			return err
		}
		if missing := unanswered(qs, a.Answers); len(missing) > 0 {
			return errors.NewAssessmentIncompleteError(missing)
		}
		if result, err = scoring.Calculate(scoring.QuestionsFromSnapshot(qs), a.Answers.All()); err != nil {
			return errors.NewScoringFailedError(err.Error())
		}

		now := s.now()
		a.Status = models.AssessmentStatusSubmitted
		a.TotalScore = result.TotalScore
		a.MaxScore = result.MaxScore
		a.Percentage = result.Percentage
		a.Rating = result.Rating
		a.SubmittedAt = &now
		if a.SnapshotFrozenAt == nil {
			a.SnapshotFrozenAt = &now
		}
		if err := s.save(ctx, tx, a, expectedVersion); err != nil {
			return err
		}

		if lead.Status == models.LeadStatusAssigned {
			if err := leads.Advance(ctx, tx, lead, models.LeadStatusInReview, actor.UserID, "assessment submitted", now); err != nil {
				return err
			}
		}

		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityAssessment,
			EntityID:   a.ID,
			Action:     audit.ActionSubmitted,
			ActorID:    actor.UserID,
			OldStatus:  string(models.AssessmentStatusDraft),
			NewStatus:  string(models.AssessmentStatusSubmitted),
			Metadata: map[string]interface{}{
				"totalScore": result.TotalScore,
				"maxScore":   result.MaxScore,
				"percentage": result.Percentage,
				"rating":     string(result.Rating),
			},
		}, now)
	})
	if errors.Is(err, errors.ErrCodeConcurrentModification) {
		return nil, s.classifySubmitConflict(ctx, id, err)
	}
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, models.AssessmentStatusDraft, models.AssessmentStatusSubmitted)
	metrics.AssessmentScores.Observe(result.Percentage)
	s.logger.Info("assessment submitted", map[string]interface{}{
		"assessmentId": a.ID,
		"leadId":       lead.LeadID,
		"percentage":   result.Percentage,
		"rating":       result.Rating,
	})

	if s.reviewerEmail != "" {
		s.notifier.Dispatch(notify.TemplateAssessmentSubmitted,
			notify.Recipient{Email: s.reviewerEmail, Name: "Reviewer"},
			map[string]interface{}{
				"leadId":      lead.LeadID,
				"companyName": lead.CompanyName,
				"percentage":  result.Percentage,
				"rating":      string(result.Rating),
			})
	}
	return a, nil
}

// classifySubmitConflict reports a lost compare-and-swap as already submitted
// when the winner moved the assessment out of DRAFT.
func (s *Service) classifySubmitConflict(ctx context.Context, id string, conflict error) error {
	current, err := s.store.Assessments().Get(ctx, id)
	if err != nil {
		return conflict
	}
	if current.Status != models.AssessmentStatusDraft {
		return errors.NewAssessmentAlreadySubmittedError(id, string(current.Status))
	}
	return conflict
}

// ApproveAssessment records a positive review and moves the lead to
// PAYMENT_PENDING. The remark is optional.
func (s *Service) ApproveAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error) {
	return s.review(ctx, actor, id, models.AssessmentStatusApproved, strings.TrimSpace(remark))
}

// RejectAssessment records a negative review. A remark is required.
func (s *Service) RejectAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error) {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		if err := auth.Authorize(actor, "reject assessment", models.RoleReviewer); err != nil {
			return nil, err
		}
		return nil, errors.NewInvalidInputError("a remark is required to reject an assessment")
	}
	return s.review(ctx, actor, id, models.AssessmentStatusRejected, remark)
}

func (s *Service) review(ctx context.Context, actor *auth.Identity, id string, to models.AssessmentStatus, remark string) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "review assessment", models.RoleReviewer); err != nil {
		return nil, err
	}

	var (
		a    *models.Assessment
		lead *models.Lead
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, err = tx.Assessments().Get(ctx, id); err != nil {
			return err
		}
		if a.Status != models.AssessmentStatusSubmitted {
			return errors.NewInvalidStatusTransitionError(models.EntityAssessment, string(a.Status), string(to))
		}
		if lead, err = tx.Leads().Get(ctx, a.LeadID); err != nil {
			return err
		}

		now := s.now()
		reviewer := actor.UserID
		a.Status = to
		a.ReviewedAt = &now
		a.ReviewerID = &reviewer
		a.ReviewerRemark = remark
		if err := s.save(ctx, tx, a, a.Version); err != nil {
			return err
		}

		if to == models.AssessmentStatusApproved && lead.Status == models.LeadStatusInReview {
			if err := leads.Advance(ctx, tx, lead, models.LeadStatusPaymentPending, actor.UserID, "assessment approved", now); err != nil {
				return err
			}
		}

		action := audit.ActionApproved
		if to == models.AssessmentStatusRejected {
			action = audit.ActionRejected
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityAssessment,
			EntityID:   a.ID,
			Action:     action,
			ActorID:    actor.UserID,
			OldStatus:  string(models.AssessmentStatusSubmitted),
			NewStatus:  string(to),
			Remark:     remark,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, models.AssessmentStatusSubmitted, to)
	s.logger.Info("assessment reviewed", map[string]interface{}{
		"assessmentId": a.ID,
		"leadId":       lead.LeadID,
		"decision":     to,
	})
	s.notifyDecision(ctx, lead, to, remark)
	return a, nil
}

// notifyDecision tells the company contact and the assigned assessor.
func (s *Service) notifyDecision(ctx context.Context, lead *models.Lead, to models.AssessmentStatus, remark string) {
	template := notify.TemplateAssessmentApproved
	if to == models.AssessmentStatusRejected {
		template = notify.TemplateAssessmentRejected
	}
	data := map[string]interface{}{
		"leadId":      lead.LeadID,
		"companyName": lead.CompanyName,
		"remark":      remark,
	}

	s.notifier.Dispatch(template,
		notify.Recipient{Email: lead.ContactEmail, Phone: lead.ContactPhone, Name: lead.ContactName}, data)

	if lead.AssignedAssessorID == nil {
		return
	}
	assessor, err := s.store.Users().Get(ctx, *lead.AssignedAssessorID)
	if err != nil {
		s.logger.Warn("assessor lookup for notification failed", map[string]interface{}{
			"leadId": lead.LeadID,
			"error":  err.Error(),
		})
		return
	}
	s.notifier.Dispatch(template, notify.Recipient{Email: assessor.Email, Name: assessor.Name}, data)
}

// ReopenAssessment returns a rejected assessment to DRAFT for rework. Scores
// are cleared; answers and the frozen snapshot are kept.
func (s *Service) ReopenAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "reopen assessment", models.RoleReviewer); err != nil {
		return nil, err
	}

	var a *models.Assessment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, err = tx.Assessments().Get(ctx, id); err != nil {
			return err
		}
		if a.Status != models.AssessmentStatusRejected {
			return errors.NewInvalidStatusTransitionError(models.EntityAssessment, string(a.Status), string(models.AssessmentStatusDraft))
		}

		a.Status = models.AssessmentStatusDraft
		a.TotalScore = 0
		a.MaxScore = 0
		a.Percentage = 0
		a.Rating = ""
		a.SubmittedAt = nil
		if err := s.save(ctx, tx, a, a.Version); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityAssessment,
			EntityID:   a.ID,
			Action:     audit.ActionReopened,
			ActorID:    actor.UserID,
			OldStatus:  string(models.AssessmentStatusRejected),
			NewStatus:  string(models.AssessmentStatusDraft),
			Remark:     strings.TrimSpace(remark),
		}, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, models.AssessmentStatusRejected, models.AssessmentStatusDraft)
	return a, nil
}
