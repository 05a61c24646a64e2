// Package snapshot manages the per-assessment copies of the question bank.
// A snapshot is forked from the active templates when the assessment is
// created and is edited only through the functions here, always inside the
// caller's transaction and after RequireEditable has passed.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
)

// RequireDraft rejects any mutation of a non-DRAFT assessment. Answer edits
// and snapshot edits share this check.
func RequireDraft(a *models.Assessment) error {
	if a.Status != models.AssessmentStatusDraft {
		return errors.NewAssessmentNotDraftError(a.ID, string(a.Status))
	}
	return nil
}

// RequireEditable is RequireDraft plus the freeze check. A snapshot frozen
// by a submission stays frozen after the assessment is reopened.
func RequireEditable(a *models.Assessment) error {
	if err := RequireDraft(a); err != nil {
		return err
	}
	if a.SnapshotFrozenAt != nil {
		return errors.NewAssessmentNotDraftError(a.ID, string(a.Status)).
			WithMetadata("snapshotFrozenAt", a.SnapshotFrozenAt.Format(time.RFC3339))
	}
	return nil
}

// Fork copies every active template into rows owned by assessmentID. Order
// indices are renumbered 0..n-1 per category.
func Fork(ctx context.Context, tx store.Tx, assessmentID string, now time.Time) ([]*models.SnapshotQuestion, error) {
	templates, err := tx.Questions().ListTemplates(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, errors.NewNotFoundError(errors.ErrCodeTemplateNotFound, "Question bank", "active")
	}

	sort.SliceStable(templates, func(i, j int) bool {
		if templates[i].Category != templates[j].Category {
			return templates[i].Category < templates[j].Category
		}
		return templates[i].OrderIndex < templates[j].OrderIndex
	})

	next := map[models.Category]int{}
	out := make([]*models.SnapshotQuestion, 0, len(templates))
	for _, t := range templates {
		tid := t.ID
		out = append(out, &models.SnapshotQuestion{
			ID:           models.QuestionID(uuid.New().String()),
			AssessmentID: assessmentID,
			TemplateID:   &tid,
			Category:     t.Category,
			Text:         t.Text,
			HelpText:     t.HelpText,
			Type:         t.Type,
			Weight:       t.Weight,
			OrderIndex:   next[t.Category],
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		next[t.Category]++
	}

	if err := tx.Questions().InsertSnapshot(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

type NewQuestion struct {
	Category models.Category     `json:"category"`
	Text     string              `json:"text"`
	HelpText string              `json:"helpText,omitempty"`
	Type     models.QuestionType `json:"type,omitempty"`
	Weight   *int                `json:"weight,omitempty"`
}

// Patch changes the fields that are set.
type Patch struct {
	Text     *string `json:"text,omitempty"`
	HelpText *string `json:"helpText,omitempty"`
	Weight   *int    `json:"weight,omitempty"`
}

func (p Patch) empty() bool {
	return p.Text == nil && p.HelpText == nil && p.Weight == nil
}

// Add appends a question at the end of its category.
func Add(ctx context.Context, tx store.Tx, assessmentID string, nq NewQuestion, now time.Time) (*models.SnapshotQuestion, error) {
	if !nq.Category.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown category %q", nq.Category))
	}
	if strings.TrimSpace(nq.Text) == "" {
		return nil, errors.NewInvalidInputError("question text is required")
	}

	qtype := models.QuestionTypeScored
	if nq.Category == models.CategoryEligibility {
		qtype = models.QuestionTypeCheckbox
	}
	if nq.Type != "" && nq.Type != qtype {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("%s questions must be %s", nq.Category, qtype))
	}

	weight := 1
	if nq.Weight != nil {
		weight = *nq.Weight
	}
	if weight < 0 {
		return nil, errors.NewInvalidInputError("weight must not be negative")
	}

	existing, err := tx.Questions().ListSnapshot(ctx, assessmentID, nq.Category)
	if err != nil {
		return nil, err
	}

	q := &models.SnapshotQuestion{
		ID:           models.QuestionID(uuid.New().String()),
		AssessmentID: assessmentID,
		Category:     nq.Category,
		Text:         strings.TrimSpace(nq.Text),
		HelpText:     nq.HelpText,
		Type:         qtype,
		Weight:       weight,
		OrderIndex:   len(existing),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Questions().InsertSnapshot(ctx, []*models.SnapshotQuestion{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// Edit applies p to one question. Category and order are not editable here.
func Edit(ctx context.Context, tx store.Tx, assessmentID string, id models.QuestionID, p Patch, now time.Time) (*models.SnapshotQuestion, error) {
	if p.empty() {
		return nil, errors.NewInvalidInputError("nothing to change")
	}
	q, err := tx.Questions().GetSnapshotQuestion(ctx, assessmentID, id)
	if err != nil {
		return nil, err
	}

	if p.Text != nil {
		text := strings.TrimSpace(*p.Text)
		if text == "" {
			return nil, errors.NewInvalidInputError("question text is required")
		}
		q.Text = text
	}
	if p.HelpText != nil {
		q.HelpText = *p.HelpText
	}
	if p.Weight != nil {
		if *p.Weight < 0 {
			return nil, errors.NewInvalidInputError("weight must not be negative")
		}
		q.Weight = *p.Weight
	}
	q.UpdatedAt = now

	if err := tx.Questions().UpdateSnapshotQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Remove deletes a question and closes the gap in its category's order.
func Remove(ctx context.Context, tx store.Tx, assessmentID string, id models.QuestionID) (*models.SnapshotQuestion, error) {
	q, err := tx.Questions().GetSnapshotQuestion(ctx, assessmentID, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Questions().DeleteSnapshotQuestion(ctx, assessmentID, id); err != nil {
		return nil, err
	}

	rest, err := tx.Questions().ListSnapshot(ctx, assessmentID, q.Category)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if err := tx.Questions().SetSnapshotOrder(ctx, assessmentID, q.Category, IDs(rest)); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Reorder takes the complete ordering of a category's ids and rewrites the
// order indices to 0..n-1. Partial orderings are rejected.
func Reorder(ctx context.Context, tx store.Tx, assessmentID string, category models.Category, ids []models.QuestionID) error {
	if !category.Valid() {
		return errors.NewInvalidInputError(fmt.Sprintf("unknown category %q", category))
	}
	current, err := tx.Questions().ListSnapshot(ctx, assessmentID, category)
	if err != nil {
		return err
	}
	if len(ids) != len(current) {
		return errors.NewInvalidInputError(fmt.Sprintf("ordering must list all %d questions of %s, got %d", len(current), category, len(ids)))
	}

	known := make(map[models.QuestionID]bool, len(current))
	for _, q := range current {
		known[q.ID] = true
	}
	seen := make(map[models.QuestionID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return errors.NewInvalidInputError(fmt.Sprintf("question %s is not in %s", id, category))
		}
		if seen[id] {
			return errors.NewInvalidInputError(fmt.Sprintf("question %s is listed twice", id))
		}
		seen[id] = true
	}
	return tx.Questions().SetSnapshotOrder(ctx, assessmentID, category, ids)
}

func IDs(qs []*models.SnapshotQuestion) []models.QuestionID {
	out := make([]models.QuestionID, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

// UnknownKeys returns the keys that name no question in qs, sorted.
func UnknownKeys[V any](qs []*models.SnapshotQuestion, answers map[models.QuestionID]V) []string {
	known := make(map[models.QuestionID]bool, len(qs))
	for _, q := range qs {
		known[q.ID] = true
	}
	var out []string
	for k := range answers {
		if !known[k] {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}
