package questionbank

import (
	"context"
	"testing"

	"ipo-readiness/internal/models"
	"ipo-readiness/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesPresetQuestionnaire(t *testing.T) {
	b := Default()

	counts := map[models.Category]int{}
	for _, q := range b.Questions {
		counts[q.Category]++
	}
	assert.Equal(t, 5, counts[models.CategoryEligibility])
	assert.Equal(t, 4, counts[models.CategoryCompany])
	assert.Equal(t, 4, counts[models.CategoryFinancial])
	assert.Equal(t, 3, counts[models.CategorySector])

	byID := map[models.QuestionID]models.QuestionTemplate{}
	for _, q := range b.Questions {
		byID[q.ID] = q
	}
	for _, p := range scoring.PresetQuestions {
		q, ok := byID[p.ID]
		require.True(t, ok, "preset %s missing from bank", p.ID)
		assert.Equal(t, p.Category, q.Category)
		assert.Equal(t, p.Weight, q.Weight)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"bad json", `{`, "parse question bank"},
		{"duplicate id", `{"questions":[
			{"id":"a","category":"COMPANY","type":"SCORED","text":"x","orderIndex":0},
			{"id":"a","category":"COMPANY","type":"SCORED","text":"y","orderIndex":1}]}`, "duplicate question id"},
		{"wrong type", `{"questions":[{"id":"a","category":"ELIGIBILITY","type":"SCORED","text":"x"}]}`, "must be CHECKBOX"},
		{"negative weight", `{"questions":[{"id":"a","category":"SECTOR","type":"SCORED","text":"x","weight":-1}]}`, "negative weight"},
		{"order clash", `{"questions":[
			{"id":"a","category":"SECTOR","type":"SCORED","text":"x","orderIndex":0},
			{"id":"b","category":"SECTOR","type":"SCORED","text":"y","orderIndex":0}]}`, "order index 0"},
		{"unknown category", `{"questions":[{"id":"a","category":"LEGAL","type":"SCORED","text":"x"}]}`, "unknown category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type recordingWriter struct {
	ids []models.QuestionID
}

func (w *recordingWriter) UpsertTemplate(_ context.Context, t *models.QuestionTemplate) error {
	w.ids = append(w.ids, t.ID)
	return nil
}

func TestSeed(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, Default().Seed(context.Background(), w))
	assert.Len(t, w.ids, 16)
}
