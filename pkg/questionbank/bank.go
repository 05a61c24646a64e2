// Package questionbank loads the template question bank that new
// assessments are forked from.
package questionbank

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"ipo-readiness/internal/models"
)

//go:embed default.json
var defaultBank []byte

type Bank struct {
	Version   string                    `json:"version"`
	Questions []models.QuestionTemplate `json:"questions"`
}

// TemplateWriter is satisfied by store.QuestionRepository.
type TemplateWriter interface {
	UpsertTemplate(ctx context.Context, t *models.QuestionTemplate) error
}

// Default returns the bundled bank: five eligibility criteria and the eleven
// scored preset questions.
func Default() *Bank {
	b, err := Parse(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("bundled question bank is invalid: %v", err))
	}
	return b
}

func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Bank, error) {
	var b Bank
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks ids are unique, categories and types agree, weights are
// non-negative and order indices are unique per category.
func (b *Bank) Validate() error {
	ids := make(map[models.QuestionID]bool, len(b.Questions))
	orders := make(map[models.Category]map[int]bool)
	for _, q := range b.Questions {
		if q.ID == "" {
			return fmt.Errorf("question with text %q has no id", q.Text)
		}
		if ids[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		ids[q.ID] = true

		if !q.Category.Valid() {
			return fmt.Errorf("question %s has unknown category %q", q.ID, q.Category)
		}
		want := models.QuestionTypeScored
		if q.Category == models.CategoryEligibility {
			want = models.QuestionTypeCheckbox
		}
		if q.Type != want {
			return fmt.Errorf("question %s in %s must be %s, got %s", q.ID, q.Category, want, q.Type)
		}
		if q.Weight < 0 {
			return fmt.Errorf("question %s has negative weight", q.ID)
		}
		if q.Text == "" {
			return fmt.Errorf("question %s has no text", q.ID)
		}

		if orders[q.Category] == nil {
			orders[q.Category] = map[int]bool{}
		}
		if orders[q.Category][q.OrderIndex] {
			return fmt.Errorf("order index %d used twice in %s", q.OrderIndex, q.Category)
		}
		orders[q.Category][q.OrderIndex] = true
	}
	return nil
}

func (b *Bank) Templates() []*models.QuestionTemplate {
	out := make([]*models.QuestionTemplate, len(b.Questions))
	for i := range b.Questions {
		q := b.Questions[i]
		out[i] = &q
	}
	return out
}

// Seed upserts every question of the bank.
func (b *Bank) Seed(ctx context.Context, w TemplateWriter) error {
	for _, t := range b.Templates() {
		if err := w.UpsertTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed question %s: %w", t.ID, err)
		}
	}
	return nil
}
