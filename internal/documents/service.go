// Package documents stores lead attachments in the blob store and keeps one
// row per object.
package documents

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"ipo-readiness/internal/audit"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
)

const defaultMaxBytes = 20 << 20

// BlobStore is satisfied by *aws.S3Client.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

type Options struct {
	MaxBytes int64
	Now      func() time.Time
}

type Service struct {
	store    store.Store
	blobs    BlobStore
	maxBytes int64
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st store.Store, blobs BlobStore, opts Options, log logger.Logger) *Service {
	s := &Service{
		store:    st,
		blobs:    blobs,
		maxBytes: opts.MaxBytes,
		logger:   log.WithFields(map[string]interface{}{"component": "documents"}),
		now:      opts.Now,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = defaultMaxBytes
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type UploadInput struct {
	LeadID      string
	Name        string
	ContentType string
	Data        []byte
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key is the object key for a document: leads/<leadId>/<uuid>-<name>.
func Key(displayLeadID, docID, name string) string {
	return fmt.Sprintf("leads/%s/%s-%s", displayLeadID, docID, name)
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	return name
}

// Upload writes the object first, then the row. A failed row insert removes
// the object again.
func (s *Service) Upload(ctx context.Context, actor *auth.Identity, in UploadInput) (*models.Document, error) {
	if err := auth.Authorize(actor, "upload document", models.RoleAssessor, models.RoleReviewer); err != nil {
		return nil, err
	}
	name := sanitize(in.Name)
	if name == "" {
		return nil, errors.NewInvalidInputError("document name is required")
	}
	if len(in.Data) == 0 {
		return nil, errors.NewInvalidInputError("document is empty")
	}
	if int64(len(in.Data)) > s.maxBytes {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("document is %d bytes, limit is %d", len(in.Data), s.maxBytes))
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	lead, err := s.store.Leads().Get(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if err := canTouch(actor, lead); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		LeadID:      lead.ID,
		Name:        name,
		ContentType: contentType,
		SizeBytes:   int64(len(in.Data)),
		UploadedBy:  actor.UserID,
		CreatedAt:   s.now(),
	}
	doc.URL, err = s.blobs.Upload(ctx, in.Data, Key(lead.LeadID, doc.ID, name), contentType)
	if err != nil {
		return nil, errors.NewStorageError("upload document", err)
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityDocument,
			EntityID:   doc.ID,
			Action:     audit.ActionDocumentUploaded,
			ActorID:    actor.UserID,
			Metadata:   map[string]interface{}{"leadId": lead.LeadID, "name": name, "sizeBytes": doc.SizeBytes},
		}, doc.CreatedAt)
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, doc.URL); delErr != nil {
			s.logger.Error("orphaned document object", map[string]interface{}{
				"url":   doc.URL,
				"error": delErr.Error(),
			})
		}
		return nil, err
	}

	s.logger.Info("document uploaded", map[string]interface{}{"leadId": lead.LeadID, "documentId": doc.ID})
	return doc, nil
}

// Delete removes the object, then the row. A row without its object is
// recoverable by deleting again; the reverse would orphan the object.
func (s *Service) Delete(ctx context.Context, actor *auth.Identity, id string) error {
	if err := auth.Authorize(actor, "delete document", models.RoleAssessor, models.RoleReviewer); err != nil {
		return err
	}
	doc, err := s.store.Documents().Get(ctx, id)
	if err != nil {
		return err
	}
	lead, err := s.store.Leads().Get(ctx, doc.LeadID)
	if err != nil {
		return err
	}
	if err := canTouch(actor, lead); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.URL); err != nil {
		return errors.NewStorageError("delete document", err)
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Documents().Delete(ctx, id); err != nil {
			return err
		}
		return audit.Write(ctx, tx, models.AuditEntry{
			EntityType: models.EntityDocument,
			EntityID:   id,
			Action:     audit.ActionDocumentDeleted,
			ActorID:    actor.UserID,
			Metadata:   map[string]interface{}{"leadId": lead.LeadID, "name": doc.Name},
		}, s.now())
	})
}

func (s *Service) List(ctx context.Context, actor *auth.Identity, leadID string) ([]*models.Document, error) {
	if err := auth.Authorize(actor, "list documents"); err != nil {
		return nil, err
	}
	lead, err := s.store.Leads().Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := canTouch(actor, lead); err != nil {
		return nil, err
	}
	return s.store.Documents().ListByLead(ctx, lead.ID)
}

func canTouch(actor *auth.Identity, lead *models.Lead) error {
	if actor.Is(models.RoleReviewer) {
		return nil
	}
	if lead.AssignedAssessorID != nil && *lead.AssignedAssessorID == actor.UserID {
		return nil
	}
	return errors.NewInsufficientPermissionsError(string(actor.Role), "documents of unassigned lead")
}
