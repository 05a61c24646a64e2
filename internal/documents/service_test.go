package documents

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	reviewer = &auth.Identity{UserID: "rev-1", Role: models.RoleReviewer, IsActive: true}
	assessor = &auth.Identity{UserID: "ass-1", Role: models.RoleAssessor, IsActive: true}
	outsider = &auth.Identity{UserID: "ass-9", Role: models.RoleAssessor, IsActive: true}
)

type fakeBlobs struct {
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func (f *fakeBlobs) Upload(_ context.Context, data []byte, key, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return "https://docs.example/" + key, nil
}

func (f *fakeBlobs) Delete(_ context.Context, url string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, url)
	delete(f.objects, strings.TrimPrefix(url, "https://docs.example/"))
	return nil
}

func setup(t *testing.T) (*Service, *memory.Store, *fakeBlobs) {
	t.Helper()
	st := memory.New()
	assigned := "ass-1"
	require.NoError(t, st.Leads().Create(context.Background(), &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0007", CompanyID: "C1", Status: models.LeadStatusAssigned,
		AssignedAssessorID: &assigned, Version: 2,
	}))
	blobs := &fakeBlobs{}
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(st, blobs, Options{MaxBytes: 1024, Now: func() time.Time { return now }}, logger.NewTestLogger(t))
	return svc, st, blobs
}

func TestUploadAndDelete(t *testing.T) {
	svc, st, blobs := setup(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, assessor, UploadInput{
		LeadID: "lead-1", Name: "../Board Resolution (2025).pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Board_Resolution_2025_.pdf", doc.Name)
	assert.Equal(t, "https://docs.example/leads/IPO-2026-0007/"+doc.ID+"-Board_Resolution_2025_.pdf", doc.URL)
	assert.Equal(t, int64(8), doc.SizeBytes)
	assert.Equal(t, "ass-1", doc.UploadedBy)
	assert.Len(t, blobs.objects, 1)

	docs, err := svc.List(ctx, reviewer, "lead-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, svc.Delete(ctx, reviewer, doc.ID))
	assert.Equal(t, []string{doc.URL}, blobs.deleted)
	_, err = st.Documents().Get(ctx, doc.ID)
	assert.Equal(t, errors.ErrCodeDocumentNotFound, errors.CodeOf(err))

	entries, err := st.Audit().List(ctx, models.EntityDocument, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUpload_Rejects(t *testing.T) {
	svc, _, blobs := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor *auth.Identity
		in    UploadInput
		code  errors.ErrorCode
	}{
		{"empty", assessor, UploadInput{LeadID: "lead-1", Name: "a.pdf"}, errors.ErrCodeInvalidInput},
		{"too large", assessor, UploadInput{LeadID: "lead-1", Name: "a.pdf", Data: make([]byte, 2048)}, errors.ErrCodeInvalidInput},
		{"no name", assessor, UploadInput{LeadID: "lead-1", Name: " / ", Data: []byte("x")}, errors.ErrCodeInvalidInput},
		{"unknown lead", reviewer, UploadInput{LeadID: "nope", Name: "a.pdf", Data: []byte("x")}, errors.ErrCodeLeadNotFound},
		{"unassigned assessor", outsider, UploadInput{LeadID: "lead-1", Name: "a.pdf", Data: []byte("x")}, errors.ErrCodeInsufficientPermissions},
		{"anonymous", nil, UploadInput{LeadID: "lead-1", Name: "a.pdf", Data: []byte("x")}, errors.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.actor, tt.in)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
	assert.Empty(t, blobs.objects)
}

func TestUpload_StorageFailure(t *testing.T) {
	svc, st, blobs := setup(t)
	ctx := context.Background()
	blobs.uploadErr = stderrors.New("access denied")

	_, err := svc.Upload(ctx, reviewer, UploadInput{LeadID: "lead-1", Name: "a.pdf", Data: []byte("x")})
	assert.Equal(t, errors.ErrCodeStorageError, errors.CodeOf(err))

	docs, err := st.Documents().ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDelete_BlobFailureKeepsRow(t *testing.T) {
	svc, st, blobs := setup(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, reviewer, UploadInput{LeadID: "lead-1", Name: "a.pdf", Data: []byte("x")})
	require.NoError(t, err)

	blobs.deleteErr = stderrors.New("timeout")
	err = svc.Delete(ctx, reviewer, doc.ID)
	assert.Equal(t, errors.ErrCodeStorageError, errors.CodeOf(err))

	_, err = st.Documents().Get(ctx, doc.ID)
	assert.NoError(t, err)

	err = svc.Delete(ctx, outsider, doc.ID)
	assert.Equal(t, errors.ErrCodeInsufficientPermissions, errors.CodeOf(err))
}
