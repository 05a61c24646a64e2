// Package audit appends lifecycle changes to the audit log inside the
// transaction that made them.
package audit

import (
	"context"
	"time"

	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
)

// Well-known actions.
const (
	ActionLeadCreated         = "lead.created"
	ActionLeadAssigned        = "lead.assigned"
	ActionLeadStatusChanged   = "lead.status_changed"
	ActionRegistryFetched     = "lead.registry_fetched"
	ActionPaymentConfirmed    = "lead.payment_confirmed"
	ActionSubmissionTriaged   = "submission.triaged"
	ActionSubmissionConverted = "submission.converted"
	ActionEligibilityDone     = "assessment.eligibility_completed"
	ActionSubmitted           = "assessment.submitted"
	ActionApproved            = "assessment.approved"
	ActionRejected            = "assessment.rejected"
	ActionReopened            = "assessment.reopened"
	ActionQuestionAdded       = "snapshot.question_added"
	ActionQuestionEdited      = "snapshot.question_edited"
	ActionQuestionRemoved     = "snapshot.question_removed"
	ActionQuestionsReordered  = "snapshot.reordered"
	ActionDocumentUploaded    = "document.uploaded"
	ActionDocumentDeleted     = "document.deleted"
)

// SystemActor is recorded for changes driven by external events.
const SystemActor = "system"

// Write fills in the id and timestamp of e and appends it through tx.
func Write(ctx context.Context, tx store.Tx, e models.AuditEntry, now time.Time) error {
	e.ID = uuid.New().String()
	e.CreatedAt = now
	if e.ActorID == "" {
		e.ActorID = SystemActor
	}
	return tx.Audit().Append(ctx, &e)
}
