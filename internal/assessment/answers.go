package assessment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/snapshot"
	"ipo-readiness/internal/store"
)

// UpdateEligibilityAnswers replaces the whole eligibility answer map. Keys
// must name questions of the live eligibility snapshot. Once the outcome is
// settled the answers are locked so they keep matching it.
func (s *Service) UpdateEligibilityAnswers(ctx context.Context, actor *auth.Identity, id string, answers models.EligibilityAnswers, expectedVersion int64) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "update eligibility answers", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}

	var a *models.Assessment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, _, err = loadForEdit(ctx, tx, actor, id, expectedVersion, snapshot.RequireDraft); err != nil {
			return err
		}
		if a.Eligibility != models.EligibilityUnset {
			return errors.NewInvalidStatusTransitionError("eligibility", string(a.Eligibility), "EDITED")
		}
		qs, err := tx.Questions().ListSnapshot(ctx, id, models.CategoryEligibility)
		if err != nil {
			return err
		}
		if unknown := snapshot.UnknownKeys(qs, answers); len(unknown) > 0 {
			return errors.NewInvalidInputError("unknown eligibility questions: " + strings.Join(unknown, ",")).
				WithMetadata("unknownQuestions", unknown)
		}

		a.EligibilityAnswers = answers.Clone()
		return s.save(ctx, tx, a, expectedVersion)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

type EligibilityResult struct {
	Assessment *models.Assessment `json:"assessment"`
	IsEligible bool               `json:"isEligible"`
	// Unchecked lists the eligibility questions that blocked the assessment.
	Unchecked []models.QuestionID `json:"unchecked,omitempty"`
}

// CompleteEligibility settles the eligibility outcome: eligible when every
// eligibility question is checked. Assessment status is unchanged and the
// lead is left alone; an ineligible lead is closed by a separate status
// update.
func (s *Service) CompleteEligibility(ctx context.Context, actor *auth.Identity, id string, expectedVersion int64) (*EligibilityResult, error) {
	if err := auth.Authorize(actor, "complete eligibility", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}

	var res EligibilityResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		a, _, err := loadForEdit(ctx, tx, actor, id, expectedVersion, snapshot.RequireDraft)
		if err != nil {
			return err
		}
		if a.Eligibility != models.EligibilityUnset {
			return errors.NewInvalidStatusTransitionError("eligibility", string(a.Eligibility), "COMPLETED")
		}

		qs, err := tx.Questions().ListSnapshot(ctx, id, models.CategoryEligibility)
		if err != nil {
			return err
		}
		res.Unchecked = nil
		for _, q := range qs {
			if !a.EligibilityAnswers[q.ID].Checked {
				res.Unchecked = append(res.Unchecked, q.ID)
			}
		}
		res.IsEligible = len(res.Unchecked) == 0

		a.Eligibility = models.EligibilityIneligible
		if res.IsEligible {
			a.Eligibility = models.EligibilityEligible
		}
		if err := s.save(ctx, tx, a, expectedVersion); err != nil {
			return err
		}
		res.Assessment = a

		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityAssessment,
			EntityID:   a.ID,
			Action:     audit.ActionEligibilityDone,
			ActorID:    actor.UserID,
			OldStatus:  string(models.EligibilityUnset),
			NewStatus:  string(a.Eligibility),
			Metadata:   map[string]interface{}{"questions": len(qs), "unchecked": len(res.Unchecked)},
		}, s.now())
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues("eligibility", string(models.EligibilityUnset), string(res.Assessment.Eligibility)).Inc()
	s.logger.Info("eligibility completed", map[string]interface{}{
		"assessmentId": id,
		"eligible":     res.IsEligible,
	})
	return &res, nil
}

// UpdateAllAssessmentAnswers merges partial answer maps into the stored
// answers. No scoring happens here; the score is computed once, on submit.
func (s *Service) UpdateAllAssessmentAnswers(ctx context.Context, actor *auth.Identity, id string, partial models.AnswerSet, expectedVersion int64) (*models.Assessment, error) {
	if err := auth.Authorize(actor, "update assessment answers", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}

	var a *models.Assessment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if a, _, err = loadForEdit(ctx, tx, actor, id, expectedVersion, snapshot.RequireDraft); err != nil {
			return err
		}
		if err := requireEligible(a); err != nil {
			return err
		}

		qs, err := tx.Questions().ListSnapshot(ctx, id, "")
		if err != nil {
			return err
		}
		if err := validateAnswers(qs, partial); err != nil {
			return err
		}

		a.Answers = a.Answers.Merge(partial)
		return s.save(ctx, tx, a, expectedVersion)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// validateAnswers checks every key names a question of its own category and
// every score is in range.
func validateAnswers(qs []*models.SnapshotQuestion, set models.AnswerSet) error {
	var problems []string
	for _, c := range models.ScoredCategories {
		answers := set.ForCategory(c)
		if len(answers) == 0 {
			continue
		}
		var inCategory []*models.SnapshotQuestion
		for _, q := range qs {
			if q.Category == c {
				inCategory = append(inCategory, q)
			}
		}
		for _, k := range snapshot.UnknownKeys(inCategory, answers) {
			problems = append(problems, fmt.Sprintf("%s: unknown question %s", c, k))
		}
		for k, v := range answers {
			if !v.Valid() {
				problems = append(problems, fmt.Sprintf("%s: question %s has score %d outside [-1, 2]", c, k, v.Score))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.NewInvalidInputError(strings.Join(problems, "; ")).WithMetadata("violations", problems)
}

// unanswered lists scored questions without an answer in their category.
func unanswered(qs []*models.SnapshotQuestion, set models.AnswerSet) []string {
	var out []string
	for _, q := range qs {
		if !q.Category.Scored() {
			continue
		}
		if _, ok := set.ForCategory(q.Category)[q.ID]; !ok {
			out = append(out, string(q.ID))
		}
	}
	return out
}
