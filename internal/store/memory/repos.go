package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type leadRepo struct{ run runner }

func (r *leadRepo) NextSequence(_ context.Context, year int) (int64, error) {
	var v int64
	err := r.run(func(d *data) error {
		d.leadSeq[year]++
		v = d.leadSeq[year]
		return nil
	})
	return v, err
}

func (r *leadRepo) Create(_ context.Context, l *models.Lead) error {
	return r.run(func(d *data) error {
		if _, ok := d.leads[l.ID]; ok {
			return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("lead id %s", l.ID))
		}
		for _, existing := range d.leads {
			if existing.CompanyID == l.CompanyID {
				return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("company %s", l.CompanyID))
			}
			if existing.LeadID == l.LeadID {
				return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("lead %s", l.LeadID))
			}
		}
		d.leads[l.ID] = l.Clone()
		return nil
	})
}

func (r *leadRepo) Get(_ context.Context, id string) (*models.Lead, error) {
	var out *models.Lead
	err := r.run(func(d *data) error {
		l, ok := d.leads[id]
		if !ok {
			return errors.NewLeadNotFoundError(id)
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (r *leadRepo) GetByCompanyID(_ context.Context, companyID string) (*models.Lead, error) {
	var out *models.Lead
	err := r.run(func(d *data) error {
		for _, l := range d.leads {
			if l.CompanyID == companyID {
				out = l.Clone()
				return nil
			}
		}
		return errors.NewLeadNotFoundError(companyID)
	})
	return out, err
}

func (r *leadRepo) Update(_ context.Context, l *models.Lead, expectedVersion int64) error {
	return r.run(func(d *data) error {
		cur, ok := d.leads[l.ID]
		if !ok || cur.Version != expectedVersion {
			return errors.NewConcurrentModificationError("lead", l.ID, expectedVersion)
		}
		next := l.Clone()
		next.Version = expectedVersion + 1
		next.LeadID, next.CompanyID, next.CreatedAt, next.CreatedBy, next.Source = cur.LeadID, cur.CompanyID, cur.CreatedAt, cur.CreatedBy, cur.Source
		d.leads[l.ID] = next
		l.Version = next.Version
		return nil
	})
}

func (r *leadRepo) List(_ context.Context, f models.LeadFilter) ([]*models.Lead, error) {
	var out []*models.Lead
	err := r.run(func(d *data) error {
		for _, l := range d.leads {
			if f.Status != "" && l.Status != f.Status {
				continue
			}
			if f.AssessorID != "" && (l.AssignedAssessorID == nil || *l.AssignedAssessorID != f.AssessorID) {
				continue
			}
			out = append(out, l.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LeadID > out[j].LeadID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, err
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

type assessmentRepo struct{ run runner }

func (r *assessmentRepo) Create(_ context.Context, a *models.Assessment) error {
	return r.run(func(d *data) error {
		if _, ok := d.assessments[a.ID]; ok {
			return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("assessment id %s", a.ID))
		}
		for _, existing := range d.assessments {
			if existing.LeadID == a.LeadID {
				return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("assessment for lead %s", a.LeadID))
			}
		}
		if _, ok := d.leads[a.LeadID]; !ok {
			return errors.NewInvalidInputError(fmt.Sprintf("lead %s does not exist", a.LeadID))
		}
		d.assessments[a.ID] = a.Clone()
		return nil
	})
}

func (r *assessmentRepo) Get(_ context.Context, id string) (*models.Assessment, error) {
	var out *models.Assessment
	err := r.run(func(d *data) error {
		a, ok := d.assessments[id]
		if !ok {
			return errors.NewAssessmentNotFoundError(id)
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

func (r *assessmentRepo) GetByLead(_ context.Context, leadID string) (*models.Assessment, error) {
	var out *models.Assessment
	err := r.run(func(d *data) error {
		for _, a := range d.assessments {
			if a.LeadID == leadID {
				out = a.Clone()
				return nil
			}
		}
		return errors.NewAssessmentNotFoundError("lead " + leadID)
	})
	return out, err
}

func (r *assessmentRepo) Update(_ context.Context, a *models.Assessment, expectedVersion int64) error {
	return r.run(func(d *data) error {
		cur, ok := d.assessments[a.ID]
		if !ok || cur.Version != expectedVersion {
			return errors.NewConcurrentModificationError("assessment", a.ID, expectedVersion)
		}
		next := a.Clone()
		next.Version = expectedVersion + 1
		next.LeadID, next.CreatedAt = cur.LeadID, cur.CreatedAt
		d.assessments[a.ID] = next
		a.Version = next.Version
		return nil
	})
}

type questionRepo struct{ run runner }

func (r *questionRepo) ListTemplates(_ context.Context, activeOnly bool) ([]*models.QuestionTemplate, error) {
	var out []*models.QuestionTemplate
	err := r.run(func(d *data) error {
		for _, t := range d.templates {
			if activeOnly && !t.Active {
				continue
			}
			c := *t
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, err
}

func (r *questionRepo) UpsertTemplate(_ context.Context, t *models.QuestionTemplate) error {
	return r.run(func(d *data) error {
		c := *t
		d.templates[t.ID] = &c
		return nil
	})
}

func (r *questionRepo) InsertSnapshot(_ context.Context, questions []*models.SnapshotQuestion) error {
	return r.run(func(d *data) error {
		for _, q := range questions {
			set := d.snapshots[q.AssessmentID]
			if set == nil {
				set = map[models.QuestionID]*models.SnapshotQuestion{}
				d.snapshots[q.AssessmentID] = set
			}
			if _, ok := set[q.ID]; ok {
				return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("snapshot question %s", q.ID))
			}
			for _, existing := range set {
				if existing.Category == q.Category && existing.OrderIndex == q.OrderIndex {
					return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("order %d in %s", q.OrderIndex, q.Category))
				}
			}
			set[q.ID] = q.Clone()
		}
		return nil
	})
}

func (r *questionRepo) ListSnapshot(_ context.Context, assessmentID string, category models.Category) ([]*models.SnapshotQuestion, error) {
	var out []*models.SnapshotQuestion
	err := r.run(func(d *data) error {
		for _, q := range d.snapshots[assessmentID] {
			if category != "" && q.Category != category {
				continue
			}
			out = append(out, q.Clone())
		}
		return nil
	})
	sortSnapshot(out)
	return out, err
}

func (r *questionRepo) GetSnapshotQuestion(_ context.Context, assessmentID string, id models.QuestionID) (*models.SnapshotQuestion, error) {
	var out *models.SnapshotQuestion
	err := r.run(func(d *data) error {
		q, ok := d.snapshots[assessmentID][id]
		if !ok {
			return errors.NewQuestionNotFoundError(string(id))
		}
		out = q.Clone()
		return nil
	})
	return out, err
}

func (r *questionRepo) UpdateSnapshotQuestion(_ context.Context, q *models.SnapshotQuestion) error {
	return r.run(func(d *data) error {
		cur, ok := d.snapshots[q.AssessmentID][q.ID]
		if !ok {
			return errors.NewQuestionNotFoundError(string(q.ID))
		}
		next := q.Clone()
		next.Category, next.TemplateID, next.CreatedAt = cur.Category, cur.TemplateID, cur.CreatedAt
		d.snapshots[q.AssessmentID][q.ID] = next
		return nil
	})
}

func (r *questionRepo) DeleteSnapshotQuestion(_ context.Context, assessmentID string, id models.QuestionID) error {
	return r.run(func(d *data) error {
		if _, ok := d.snapshots[assessmentID][id]; !ok {
			return errors.NewQuestionNotFoundError(string(id))
		}
		delete(d.snapshots[assessmentID], id)
		return nil
	})
}

func (r *questionRepo) SetSnapshotOrder(_ context.Context, assessmentID string, category models.Category, ids []models.QuestionID) error {
	return r.run(func(d *data) error {
		set := d.snapshots[assessmentID]
		for _, id := range ids {
			q, ok := set[id]
			if !ok || q.Category != category {
				return errors.NewQuestionNotFoundError(string(id))
			}
		}
		for i, id := range ids {
			next := set[id].Clone()
			next.OrderIndex = i
			set[id] = next
		}
		return nil
	})
}

func sortSnapshot(qs []*models.SnapshotQuestion) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].Category != qs[j].Category {
			return qs[i].Category < qs[j].Category
		}
		return qs[i].OrderIndex < qs[j].OrderIndex
	})
}

type auditRepo struct{ run runner }

func (r *auditRepo) Append(_ context.Context, e *models.AuditEntry) error {
	return r.run(func(d *data) error {
		c := *e
		d.audit = append(d.audit, &c)
		return nil
	})
}

func (r *auditRepo) List(_ context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	var out []*models.AuditEntry
	err := r.run(func(d *data) error {
		for _, e := range d.audit {
			if e.EntityType == entityType && e.EntityID == entityID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

type submissionRepo struct{ run runner }

func (r *submissionRepo) Create(_ context.Context, s *models.OrganicSubmission) error {
	return r.run(func(d *data) error {
		if _, ok := d.submissions[s.ID]; ok {
			return errors.NewDuplicateUniqueKeyError(fmt.Sprintf("submission %s", s.ID))
		}
		c := *s
		d.submissions[s.ID] = &c
		return nil
	})
}

func (r *submissionRepo) Get(_ context.Context, id string) (*models.OrganicSubmission, error) {
	var out *models.OrganicSubmission
	err := r.run(func(d *data) error {
		s, ok := d.submissions[id]
		if !ok {
			return errors.NewNotFoundError(errors.ErrCodeSubmissionNotFound, "Submission", id)
		}
		c := *s
		out = &c
		return nil
	})
	return out, err
}

func (r *submissionRepo) UpdateStatus(_ context.Context, id string, from, to models.SubmissionStatus, leadID *string) error {
	return r.run(func(d *data) error {
		cur, ok := d.submissions[id]
		if !ok || cur.Status != from {
			return errors.NewConcurrentModificationError("submission", id, 0).WithMetadata("expectedStatus", string(from))
		}
		next := *cur
		next.Status = to
		if leadID != nil {
			l := *leadID
			next.LeadID = &l
		}
		next.UpdatedAt = time.Now().UTC()
		d.submissions[id] = &next
		return nil
	})
}

type documentRepo struct{ run runner }

func (r *documentRepo) Create(_ context.Context, doc *models.Document) error {
	return r.run(func(d *data) error {
		if _, ok := d.leads[doc.LeadID]; !ok {
			return errors.NewInvalidInputError(fmt.Sprintf("lead %s does not exist", doc.LeadID))
		}
		c := *doc
		d.documents[doc.ID] = &c
		return nil
	})
}

func (r *documentRepo) Get(_ context.Context, id string) (*models.Document, error) {
	var out *models.Document
	err := r.run(func(d *data) error {
		doc, ok := d.documents[id]
		if !ok {
			return errors.NewNotFoundError(errors.ErrCodeDocumentNotFound, "Document", id)
		}
		c := *doc
		out = &c
		return nil
	})
	return out, err
}

func (r *documentRepo) Delete(_ context.Context, id string) error {
	return r.run(func(d *data) error {
		if _, ok := d.documents[id]; !ok {
			return errors.NewNotFoundError(errors.ErrCodeDocumentNotFound, "Document", id)
		}
		delete(d.documents, id)
		return nil
	})
}

func (r *documentRepo) ListByLead(_ context.Context, leadID string) ([]*models.Document, error) {
	var out []*models.Document
	err := r.run(func(d *data) error {
		for _, doc := range d.documents {
			if doc.LeadID == leadID {
				c := *doc
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type portalCodeRepo struct{ run runner }

func (r *portalCodeRepo) Create(_ context.Context, pc *models.PortalCode) error {
	return r.run(func(d *data) error {
		for _, existing := range d.portalCodes {
			if existing.Identifier == pc.Identifier && existing.CodeHash == pc.CodeHash {
				return errors.NewDuplicateUniqueKeyError("portal code")
			}
		}
		c := *pc
		d.portalCodes[pc.ID] = &c
		return nil
	})
}

func (r *portalCodeRepo) ListActive(_ context.Context, identifier string) ([]*models.PortalCode, error) {
	var out []*models.PortalCode
	err := r.run(func(d *data) error {
		for _, pc := range d.portalCodes {
			if pc.Identifier == identifier && pc.ConsumedAt == nil {
				c := *pc
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *portalCodeRepo) Consume(_ context.Context, id string, at time.Time) error {
	return r.run(func(d *data) error {
		pc, ok := d.portalCodes[id]
		if !ok || pc.ConsumedAt != nil {
			return errors.NewNotFoundError(errors.ErrCodePortalCodeNotFound, "Portal code", id)
		}
		next := *pc
		next.ConsumedAt = &at
		d.portalCodes[id] = &next
		return nil
	})
}

type userRepo struct{ run runner }

func (r *userRepo) Get(_ context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.run(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return errors.NewNotFoundError(errors.ErrCodeUserNotFound, "User", id)
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.run(func(d *data) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
				c := *u
				out = &c
				return nil
			}
		}
		return errors.NewNotFoundError(errors.ErrCodeUserNotFound, "User", email)
	})
	return out, err
}

func (r *userRepo) Upsert(_ context.Context, u *models.User) error {
	return r.run(func(d *data) error {
		c := *u
		d.users[u.ID] = &c
		return nil
	})
}
