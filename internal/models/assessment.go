package models

import "time"

type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusSubmitted AssessmentStatus = "SUBMITTED"
	AssessmentStatusApproved  AssessmentStatus = "APPROVED"
	AssessmentStatusRejected  AssessmentStatus = "REJECTED"
)

// EligibilityOutcome is UNSET until eligibility is completed.
type EligibilityOutcome string

const (
	EligibilityUnset      EligibilityOutcome = "UNSET"
	EligibilityEligible   EligibilityOutcome = "ELIGIBLE"
	EligibilityIneligible EligibilityOutcome = "INELIGIBLE"
)

type Rating string

const (
	RatingIPOReady         Rating = "IPO_READY"
	RatingNearlyReady      Rating = "NEARLY_READY"
	RatingNeedsImprovement Rating = "NEEDS_IMPROVEMENT"
	RatingNotReady         Rating = "NOT_READY"
)

// QuestionID is an opaque snapshot question identifier used as an answer key.
type QuestionID string

type EligibilityAnswer struct {
	Checked bool   `json:"checked"`
	Remark  string `json:"remark,omitempty"`
}

// ScoredAnswer holds a score in {-1, 0, 1, 2}; -1 means not applicable.
type ScoredAnswer struct {
	Score        int    `json:"score"`
	Remark       string `json:"remark,omitempty"`
	EvidenceLink string `json:"evidenceLink,omitempty"`
}

const (
	ScoreNotApplicable = -1
	ScoreMax           = 2
)

func (a ScoredAnswer) Valid() bool {
	return a.Score >= ScoreNotApplicable && a.Score <= ScoreMax
}

type EligibilityAnswers map[QuestionID]EligibilityAnswer

type ScoredAnswers map[QuestionID]ScoredAnswer

// AnswerSet groups main questionnaire answers by category.
type AnswerSet struct {
	Company   ScoredAnswers `json:"company,omitempty"`
	Financial ScoredAnswers `json:"financial,omitempty"`
	Sector    ScoredAnswers `json:"sector,omitempty"`
}

// ForCategory returns the map for a scored category, nil otherwise.
func (s AnswerSet) ForCategory(c Category) ScoredAnswers {
	switch c {
	case CategoryCompany:
		return s.Company
	case CategoryFinancial:
		return s.Financial
	case CategorySector:
		return s.Sector
	}
	return nil
}

// All flattens the three categories into one map.
func (s AnswerSet) All() ScoredAnswers {
	out := make(ScoredAnswers, len(s.Company)+len(s.Financial)+len(s.Sector))
	for _, m := range []ScoredAnswers{s.Company, s.Financial, s.Sector} {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Merge overlays partial onto s and returns the result. s is not modified.
func (s AnswerSet) Merge(partial AnswerSet) AnswerSet {
	merge := func(dst, src ScoredAnswers) ScoredAnswers {
		out := make(ScoredAnswers, len(dst)+len(src))
		for k, v := range dst {
			out[k] = v
		}
		for k, v := range src {
			out[k] = v
		}
		return out
	}
	return AnswerSet{
		Company:   merge(s.Company, partial.Company),
		Financial: merge(s.Financial, partial.Financial),
		Sector:    merge(s.Sector, partial.Sector),
	}
}

func (s AnswerSet) Clone() AnswerSet {
	return AnswerSet{}.Merge(s)
}

func (e EligibilityAnswers) Clone() EligibilityAnswers {
	out := make(EligibilityAnswers, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Assessment is one-to-one with a Lead.
type Assessment struct {
	ID                 string             `json:"id"`
	LeadID             string             `json:"leadId"`
	Status             AssessmentStatus   `json:"status"`
	Eligibility        EligibilityOutcome `json:"eligibility"`
	EligibilityAnswers EligibilityAnswers `json:"eligibilityAnswers"`
	Answers            AnswerSet          `json:"answers"`
	TotalScore         int                `json:"totalScore"`
	MaxScore           int                `json:"maxScore"`
	Percentage         float64            `json:"percentage"`
	Rating             Rating             `json:"rating,omitempty"`
	SubmittedAt        *time.Time         `json:"submittedAt,omitempty"`
	ReviewedAt         *time.Time         `json:"reviewedAt,omitempty"`
	ReviewerID         *string            `json:"reviewerId,omitempty"`
	ReviewerRemark     string             `json:"reviewerRemark,omitempty"`
	SnapshotFrozenAt   *time.Time         `json:"snapshotFrozenAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	Version            int64              `json:"version"`
}

func (a *Assessment) GetVersion() int64 { return a.Version }

func (a *Assessment) IsDraft() bool { return a.Status == AssessmentStatusDraft }

func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	c := *a
	c.EligibilityAnswers = a.EligibilityAnswers.Clone()
	c.Answers = a.Answers.Clone()
	c.SubmittedAt = cloneTime(a.SubmittedAt)
	c.ReviewedAt = cloneTime(a.ReviewedAt)
	c.SnapshotFrozenAt = cloneTime(a.SnapshotFrozenAt)
	if a.ReviewerID != nil {
		id := *a.ReviewerID
		c.ReviewerID = &id
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
