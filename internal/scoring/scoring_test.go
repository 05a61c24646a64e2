package scoring

import (
	"testing"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presetAnswers(scores ...int) models.ScoredAnswers {
	answers := make(models.ScoredAnswers, len(PresetQuestions))
	for i, q := range PresetQuestions {
		answers[q.ID] = models.ScoredAnswer{Score: scores[i]}
	}
	return answers
}

func TestCalculatePresetScore_EightFullThreeNotApplicable(t *testing.T) {
	answers := presetAnswers(2, 2, 2, 2, 2, 2, 2, 2, -1, -1, -1)

	result, err := CalculatePresetScore(answers)
	require.NoError(t, err)

	assert.Equal(t, 16, result.TotalScore)
	assert.Equal(t, 16, result.MaxScore)
	assert.Equal(t, 100.0, result.Percentage)
	assert.Equal(t, models.RatingIPOReady, result.Rating)
}

func TestCalculatePresetScore_AllNotApplicable(t *testing.T) {
	answers := presetAnswers(-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1)

	result, err := CalculatePresetScore(answers)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalScore)
	assert.Equal(t, 0, result.MaxScore)
	assert.Equal(t, 0.0, result.Percentage)
	assert.Equal(t, models.RatingNotReady, result.Rating)
}

func TestCalculatePresetScore_NotApplicableShrinksDenominator(t *testing.T) {
	withZero := presetAnswers(2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 0)
	withNA := presetAnswers(2, 2, 2, 2, 2, 2, 2, 2, 2, 2, -1)

	zero, err := CalculatePresetScore(withZero)
	require.NoError(t, err)
	na, err := CalculatePresetScore(withNA)
	require.NoError(t, err)

	assert.Equal(t, 20, zero.TotalScore)
	assert.Equal(t, 22, zero.MaxScore)
	assert.Equal(t, 20, na.TotalScore)
	assert.Equal(t, 20, na.MaxScore)
	assert.Equal(t, 90.91, zero.Percentage)
	assert.Equal(t, 100.0, na.Percentage)
}

func TestCalculatePresetScore_Deterministic(t *testing.T) {
	answers := presetAnswers(1, 0, 2, -1, 1, 1, 2, 0, -1, 2, 1)

	first, err := CalculatePresetScore(answers)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := CalculatePresetScore(answers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 10, first.TotalScore)
	assert.Equal(t, 18, first.MaxScore)
	assert.Equal(t, 55.56, first.Percentage)
	assert.Equal(t, models.RatingNeedsImprovement, first.Rating)
}

func TestCalculate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		answers models.ScoredAnswers
	}{
		{
			name:    "missing answer",
			answers: models.ScoredAnswers{"company-01": {Score: 2}},
		},
		{
			name:    "score above range",
			answers: presetAnswers(3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2),
		},
		{
			name:    "score below range",
			answers: presetAnswers(2, 2, 2, 2, 2, 2, 2, 2, 2, 2, -2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePresetScore(tt.answers)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeScoringFailed, errors.CodeOf(err))
		})
	}
}

func TestCalculate_Weights(t *testing.T) {
	questions := []Question{
		{ID: "a", Category: models.CategoryCompany, Weight: 3},
		{ID: "b", Category: models.CategoryFinancial, Weight: 1},
	}
	answers := models.ScoredAnswers{
		"a":     {Score: 1},
		"b":     {Score: 2},
		"extra": {Score: 0},
	}

	result, err := Calculate(questions, answers)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalScore)
	assert.Equal(t, 8, result.MaxScore)
	assert.Equal(t, 62.5, result.Percentage)
	assert.Equal(t, models.RatingNearlyReady, result.Rating)
}

func TestRatingFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want models.Rating
	}{
		{100, models.RatingIPOReady},
		{80, models.RatingIPOReady},
		{79.99, models.RatingNearlyReady},
		{60, models.RatingNearlyReady},
		{59.99, models.RatingNeedsImprovement},
		{40, models.RatingNeedsImprovement},
		{39.99, models.RatingNotReady},
		{0, models.RatingNotReady},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RatingFor(tt.pct), "percentage %v", tt.pct)
	}
}

func TestQuestionsFromSnapshot_SkipsEligibility(t *testing.T) {
	snapshot := []*models.SnapshotQuestion{
		{ID: "e1", Category: models.CategoryEligibility, Weight: 1},
		{ID: "c1", Category: models.CategoryCompany, Weight: 2},
		{ID: "s1", Category: models.CategorySector, Weight: 1},
	}

	qs := QuestionsFromSnapshot(snapshot)
	require.Len(t, qs, 2)
	assert.Equal(t, models.QuestionID("c1"), qs[0].ID)
	assert.Equal(t, 2, qs[0].Weight)
	assert.Equal(t, models.QuestionID("s1"), qs[1].ID)
}
