package models

import "time"

type Category string

const (
	CategoryCompany     Category = "COMPANY"
	CategoryFinancial   Category = "FINANCIAL"
	CategorySector      Category = "SECTOR"
	CategoryEligibility Category = "ELIGIBILITY"
)

// ScoredCategories are the main questionnaire categories, in display order.
var ScoredCategories = []Category{CategoryCompany, CategoryFinancial, CategorySector}

func (c Category) Valid() bool {
	switch c {
	case CategoryCompany, CategoryFinancial, CategorySector, CategoryEligibility:
		return true
	}
	return false
}

func (c Category) Scored() bool {
	return c.Valid() && c != CategoryEligibility
}

type QuestionType string

const (
	QuestionTypeScored   QuestionType = "SCORED"
	QuestionTypeCheckbox QuestionType = "CHECKBOX"
)

// QuestionTemplate is a row of the global question bank.
type QuestionTemplate struct {
	ID         QuestionID   `json:"id"`
	Category   Category     `json:"category"`
	Text       string       `json:"text"`
	HelpText   string       `json:"helpText,omitempty"`
	Type       QuestionType `json:"type"`
	Weight     int          `json:"weight"`
	OrderIndex int          `json:"orderIndex"`
	Active     bool         `json:"active"`
}

// SnapshotQuestion is an assessment-scoped copy of a template question.
// Rows are unique per (AssessmentID, Category, OrderIndex).
type SnapshotQuestion struct {
	ID           QuestionID   `json:"id"`
	AssessmentID string       `json:"assessmentId"`
	TemplateID   *QuestionID  `json:"templateId,omitempty"`
	Category     Category     `json:"category"`
	Text         string       `json:"text"`
	HelpText     string       `json:"helpText,omitempty"`
	Type         QuestionType `json:"type"`
	Weight       int          `json:"weight"`
	OrderIndex   int          `json:"orderIndex"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (q *SnapshotQuestion) Clone() *SnapshotQuestion {
	c := *q
	if q.TemplateID != nil {
		id := *q.TemplateID
		c.TemplateID = &id
	}
	return &c
}
