package workertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ipo-readiness/internal/assessment"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/snapshot"
	"ipo-readiness/internal/store/memory"
	"ipo-readiness/pkg/questionbank"

	"github.com/stretchr/testify/require"
)

var FixedNow = time.Date(2026, 4, 14, 9, 0, 0, 0, time.UTC)

// Notifier records dispatched templates.
type Notifier struct {
	mu        sync.Mutex
	Templates []string
}

func (n *Notifier) Dispatch(template string, _ notify.Recipient, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Templates = append(n.Templates, template)
}

func (n *Notifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Templates...)
}

// Fixture is a memory store with the default bank seeded, the two fixture
// users and real lead and assessment services.
type Fixture struct {
	Store       *memory.Store
	Leads       *leads.Service
	Assessments *assessment.Service
	Notifier    *Notifier

	companies int
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, questionbank.Default().Seed(ctx, st.Questions()))
	for _, u := range []*models.User{
		{ID: Reviewer.UserID, Email: Reviewer.Email, Name: "Rita", Role: models.RoleReviewer, IsActive: true},
		{ID: Assessor.UserID, Email: Assessor.Email, Name: "Arun", Role: models.RoleAssessor, IsActive: true},
	} {
		require.NoError(t, st.Users().Upsert(ctx, u))
	}

	n := &Notifier{}
	now := func() time.Time { return FixedNow }
	log := logger.NewTestLogger(t)
	return &Fixture{
		Store:       st,
		Leads:       leads.NewService(st, leads.Options{Notifier: n, Now: now}, log),
		Assessments: assessment.NewService(st, assessment.Options{Notifier: n, ReviewerEmail: "desk@ipo.example", Now: now}, log),
		Notifier:    n,
	}
}

// AssignedDraft creates a lead for a fresh company, assigns it to Assessor
// and returns its assessment at version 1.
func (f *Fixture) AssignedDraft(t *testing.T) *models.Assessment {
	t.Helper()
	ctx := context.Background()
	f.companies++
	c, err := f.Leads.CreateLead(ctx, Reviewer, leads.CreateLeadInput{
		CompanyID:    fmt.Sprintf("U72900MH2015PTC%06d", 123455+f.companies),
		CompanyName:  "Acme Industries",
		ContactName:  "Meera Shah",
		ContactEmail: "meera@acme.example",
	})
	require.NoError(t, err)
	_, err = f.Leads.AssignAssessor(ctx, Reviewer, c.Lead.ID, Assessor.UserID, c.Lead.Version)
	require.NoError(t, err)
	return c.Assessment
}

func (f *Fixture) QuestionIDs(t *testing.T, assessmentID string, c models.Category) []models.QuestionID {
	t.Helper()
	qs, err := f.Store.Questions().ListSnapshot(context.Background(), assessmentID, c)
	require.NoError(t, err)
	return snapshot.IDs(qs)
}

// Eligible checks every eligibility question and completes eligibility.
func (f *Fixture) Eligible(t *testing.T) *models.Assessment {
	t.Helper()
	ctx := context.Background()
	a := f.AssignedDraft(t)
	answers := models.EligibilityAnswers{}
	for _, id := range f.QuestionIDs(t, a.ID, models.CategoryEligibility) {
		answers[id] = models.EligibilityAnswer{Checked: true}
	}
	a, err := f.Assessments.UpdateEligibilityAnswers(ctx, Assessor, a.ID, answers, a.Version)
	require.NoError(t, err)
	res, err := f.Assessments.CompleteEligibility(ctx, Assessor, a.ID, a.Version)
	require.NoError(t, err)
	require.True(t, res.IsEligible)
	return res.Assessment
}

// FullAnswers scores every scored question with score.
func (f *Fixture) FullAnswers(t *testing.T, assessmentID string, score int) models.AnswerSet {
	t.Helper()
	build := func(c models.Category) models.ScoredAnswers {
		out := models.ScoredAnswers{}
		for _, id := range f.QuestionIDs(t, assessmentID, c) {
			out[id] = models.ScoredAnswer{Score: score}
		}
		return out
	}
	return models.AnswerSet{
		Company:   build(models.CategoryCompany),
		Financial: build(models.CategoryFinancial),
		Sector:    build(models.CategorySector),
	}
}

// Ready returns an eligible draft with every question scored 2.
func (f *Fixture) Ready(t *testing.T) *models.Assessment {
	t.Helper()
	a := f.Eligible(t)
	a, err := f.Assessments.UpdateAllAssessmentAnswers(context.Background(), Assessor, a.ID, f.FullAnswers(t, a.ID, 2), a.Version)
	require.NoError(t, err)
	return a
}

// Submitted returns a scored, submitted assessment.
func (f *Fixture) Submitted(t *testing.T) *models.Assessment {
	t.Helper()
	a := f.Ready(t)
	a, err := f.Assessments.SubmitAssessment(context.Background(), Assessor, a.ID, a.Version)
	require.NoError(t, err)
	return a
}
