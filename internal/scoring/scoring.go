// Package scoring computes the weighted readiness score of a submitted
// questionnaire. Every function here is pure.
package scoring

import (
	"fmt"
	"math"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

// Rating ladder, in percent. A percentage at or above a threshold earns that band.
const (
	ThresholdIPOReady         = 80.0
	ThresholdNearlyReady      = 60.0
	ThresholdNeedsImprovement = 40.0
)

// Question is the scoring view of a snapshot question.
type Question struct {
	ID       models.QuestionID
	Category models.Category
	Weight   int
}

type Result struct {
	TotalScore int           `json:"totalScore"`
	MaxScore   int           `json:"maxScore"`
	Percentage float64       `json:"percentage"`
	Rating     models.Rating `json:"rating"`
}

// PresetQuestions is the fixed eleven-question questionnaire seeded into the
// template bank.
var PresetQuestions = []Question{
	{ID: "company-01", Category: models.CategoryCompany, Weight: 1},
	{ID: "company-02", Category: models.CategoryCompany, Weight: 1},
	{ID: "company-03", Category: models.CategoryCompany, Weight: 1},
	{ID: "company-04", Category: models.CategoryCompany, Weight: 1},
	{ID: "financial-01", Category: models.CategoryFinancial, Weight: 1},
	{ID: "financial-02", Category: models.CategoryFinancial, Weight: 1},
	{ID: "financial-03", Category: models.CategoryFinancial, Weight: 1},
	{ID: "financial-04", Category: models.CategoryFinancial, Weight: 1},
	{ID: "sector-01", Category: models.CategorySector, Weight: 1},
	{ID: "sector-02", Category: models.CategorySector, Weight: 1},
	{ID: "sector-03", Category: models.CategorySector, Weight: 1},
}

// CalculatePresetScore scores answers against PresetQuestions.
func CalculatePresetScore(answers models.ScoredAnswers) (Result, error) {
	return Calculate(PresetQuestions, answers)
}

// Calculate scores answers against questions. Each question earns
// score*weight out of 2*weight; a not-applicable answer (-1) is left out of
// both sums. Answers for ids not in questions are ignored.
func Calculate(questions []Question, answers models.ScoredAnswers) (Result, error) {
	var total, max int
	for _, q := range questions {
		if q.Weight < 0 {
			return Result{}, errors.NewScoringFailedError(fmt.Sprintf("question %s has negative weight %d", q.ID, q.Weight))
		}
		a, ok := answers[q.ID]
		if !ok {
			return Result{}, errors.NewScoringFailedError(fmt.Sprintf("question %s is unanswered", q.ID))
		}
		if !a.Valid() {
			return Result{}, errors.NewScoringFailedError(fmt.Sprintf("question %s has score %d outside [-1, 2]", q.ID, a.Score))
		}
		if a.Score == models.ScoreNotApplicable {
			continue
		}
		total += a.Score * q.Weight
		max += models.ScoreMax * q.Weight
	}

	pct := Percentage(total, max)
	return Result{
		TotalScore: total,
		MaxScore:   max,
		Percentage: pct,
		Rating:     RatingFor(pct),
	}, nil
}

// Percentage returns total/max*100 rounded to two decimals, or 0 when max is 0.
func Percentage(total, max int) float64 {
	if max == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(max)*10000) / 100
}

func RatingFor(percentage float64) models.Rating {
	switch {
	case percentage >= ThresholdIPOReady:
		return models.RatingIPOReady
	case percentage >= ThresholdNearlyReady:
		return models.RatingNearlyReady
	case percentage >= ThresholdNeedsImprovement:
		return models.RatingNeedsImprovement
	default:
		return models.RatingNotReady
	}
}

// QuestionsFromSnapshot returns the scored questions of a snapshot, skipping
// eligibility criteria.
func QuestionsFromSnapshot(snapshot []*models.SnapshotQuestion) []Question {
	out := make([]Question, 0, len(snapshot))
	for _, q := range snapshot {
		if !q.Category.Scored() {
			continue
		}
		out = append(out, Question{ID: q.ID, Category: q.Category, Weight: q.Weight})
	}
	return out
}
