package assessment

import (
	"context"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/snapshot"
	"ipo-readiness/internal/store"
)

// Snapshot edits bump the assessment version so clients holding a stale
// question list get CONCURRENT_MODIFICATION on their next write.

func (s *Service) AddQuestion(ctx context.Context, actor *auth.Identity, id string, nq snapshot.NewQuestion, expectedVersion int64) (*models.SnapshotQuestion, *models.Assessment, error) {
	var q *models.SnapshotQuestion
	a, err := s.editSnapshot(ctx, actor, id, expectedVersion, func(tx store.Tx, a *models.Assessment) (models.AuditEntry, error) {
		var err error
		if q, err = snapshot.Add(ctx, tx, id, nq, s.now()); err != nil {
			return models.AuditEntry{}, err
		}
		return models.AuditEntry{
			Action:   audit.ActionQuestionAdded,
			Metadata: map[string]interface{}{"questionId": string(q.ID), "category": string(q.Category)},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return q, a, nil
}

func (s *Service) EditQuestion(ctx context.Context, actor *auth.Identity, id string, qid models.QuestionID, p snapshot.Patch, expectedVersion int64) (*models.SnapshotQuestion, *models.Assessment, error) {
	var q *models.SnapshotQuestion
	a, err := s.editSnapshot(ctx, actor, id, expectedVersion, func(tx store.Tx, a *models.Assessment) (models.AuditEntry, error) {
		var err error
		if q, err = snapshot.Edit(ctx, tx, id, qid, p, s.now()); err != nil {
			return models.AuditEntry{}, err
		}
		return models.AuditEntry{
			Action:   audit.ActionQuestionEdited,
			Metadata: map[string]interface{}{"questionId": string(qid)},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return q, a, nil
}

// RemoveQuestion deletes a snapshot question together with any answer to it.
func (s *Service) RemoveQuestion(ctx context.Context, actor *auth.Identity, id string, qid models.QuestionID, expectedVersion int64) (*models.Assessment, error) {
	return s.editSnapshot(ctx, actor, id, expectedVersion, func(tx store.Tx, a *models.Assessment) (models.AuditEntry, error) {
		q, err := snapshot.Remove(ctx, tx, id, qid)
		if err != nil {
			return models.AuditEntry{}, err
		}
		if q.Category == models.CategoryEligibility {
			delete(a.EligibilityAnswers, qid)
		} else if answers := a.Answers.ForCategory(q.Category); answers != nil {
			delete(answers, qid)
		}
		return models.AuditEntry{
			Action:   audit.ActionQuestionRemoved,
			Metadata: map[string]interface{}{"questionId": string(qid), "category": string(q.Category)},
		}, nil
	})
}

func (s *Service) ReorderQuestions(ctx context.Context, actor *auth.Identity, id string, category models.Category, ids []models.QuestionID, expectedVersion int64) (*models.Assessment, error) {
	return s.editSnapshot(ctx, actor, id, expectedVersion, func(tx store.Tx, a *models.Assessment) (models.AuditEntry, error) {
		if err := snapshot.Reorder(ctx, tx, id, category, ids); err != nil {
			return models.AuditEntry{}, err
		}
		return models.AuditEntry{
			Action:   audit.ActionQuestionsReordered,
			Metadata: map[string]interface{}{"category": string(category), "count": len(ids)},
		}, nil
	})
}

func (s *Service) editSnapshot(ctx context.Context, actor *auth.Identity, id string, expectedVersion int64,
	edit func(tx store.Tx, a *models.Assessment) (models.AuditEntry, error)) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "edit question snapshot", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}

	var a *models.Assessment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, _, err = loadForEdit(ctx, tx, actor, id, expectedVersion, snapshot.RequireEditable); err != nil {
			return err
		}
		entry, err := edit(tx, a)
		if err != nil {
			return err
		}
		if err := s.save(ctx, tx, a, expectedVersion); err != nil {
			return err
		}
		entry.EntityType = models.EntitySnapshot
		entry.EntityID = a.ID
		entry.ActorID = actor.UserID
		return audit.Write(ctx, tx, entry, s.now())
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
