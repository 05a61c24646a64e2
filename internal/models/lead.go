package models

import "time"

type LeadStatus string

const (
	LeadStatusNew            LeadStatus = "NEW"
	LeadStatusAssigned       LeadStatus = "ASSIGNED"
	LeadStatusInReview       LeadStatus = "IN_REVIEW"
	LeadStatusPaymentPending LeadStatus = "PAYMENT_PENDING"
	LeadStatusCompleted      LeadStatus = "COMPLETED"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusAssigned, LeadStatusInReview, LeadStatusPaymentPending, LeadStatusCompleted:
		return true
	}
	return false
}

type LeadSource string

const (
	LeadSourceReviewer LeadSource = "REVIEWER"
	LeadSourceOrganic  LeadSource = "ORGANIC"
)

// RegistrySnapshot is the company profile copied from the registry provider.
type RegistrySnapshot struct {
	LegalName         string          `json:"legalName"`
	CompanyStatus     string          `json:"companyStatus"`
	IncorporatedOn    string          `json:"incorporatedOn,omitempty"`
	PaidUpCapital     float64         `json:"paidUpCapital"`
	AuthorisedCapital float64         `json:"authorisedCapital"`
	ComplianceFlags   map[string]bool `json:"complianceFlags,omitempty"`
	FetchedAt         time.Time       `json:"fetchedAt"`
}

// Lead is a company under evaluation. Leads are never deleted.
type Lead struct {
	ID                 string            `json:"id"`
	LeadID             string            `json:"leadId"`
	CompanyID          string            `json:"companyId"`
	CompanyName        string            `json:"companyName"`
	Status             LeadStatus        `json:"status"`
	AssignedAssessorID *string           `json:"assignedAssessorId,omitempty"`
	ContactName        string            `json:"contactName"`
	ContactEmail       string            `json:"contactEmail"`
	ContactPhone       string            `json:"contactPhone,omitempty"`
	Source             LeadSource        `json:"source"`
	RegistryFetched    bool              `json:"registryFetched"`
	Registry           *RegistrySnapshot `json:"registry,omitempty"`
	CreatedBy          string            `json:"createdBy"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	Version            int64             `json:"version"`
}

// GetVersion satisfies the optimistic lock check.
func (l *Lead) GetVersion() int64 { return l.Version }

func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	if l.AssignedAssessorID != nil {
		id := *l.AssignedAssessorID
		c.AssignedAssessorID = &id
	}
	if l.Registry != nil {
		r := *l.Registry
		if l.Registry.ComplianceFlags != nil {
			r.ComplianceFlags = make(map[string]bool, len(l.Registry.ComplianceFlags))
			for k, v := range l.Registry.ComplianceFlags {
				r.ComplianceFlags[k] = v
			}
		}
		c.Registry = &r
	}
	return &c
}

// LeadFilter narrows lead listings. Zero values match everything.
type LeadFilter struct {
	Status     LeadStatus
	AssessorID string
	Limit      int
	Offset     int
}
