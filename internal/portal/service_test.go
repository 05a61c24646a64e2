package portal

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/store/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu    sync.Mutex
	codes []string
	to    []notify.Recipient
}

func (c *capture) Dispatch(template string, to notify.Recipient, data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if template == notify.TemplatePortalAccess {
		c.codes = append(c.codes, data["code"].(string))
		c.to = append(c.to, to)
	}
}

func (c *capture) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[len(c.codes)-1]
}

type fixture struct {
	mr      *miniredis.Miniredis
	svc     *Service
	jwt     *auth.JWTIssuer
	sent    *capture
	now     time.Time
	leadID  string
	contact string
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st := memory.New()
	lead := &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0001", CompanyID: "U72900MH2015PTC123456",
		CompanyName: "Acme Industries", Status: models.LeadStatusPaymentPending,
		ContactName: "Meera Shah", ContactEmail: "meera@acme.example", ContactPhone: "+919812345678",
		Source: models.LeadSourceReviewer, Version: 1,
	}
	require.NoError(t, st.Leads().Create(context.Background(), lead))

	f := &fixture{
		mr:      mr,
		jwt:     auth.NewJWTIssuer("portal-secret", "ipo-readiness", "portal", time.Hour),
		sent:    &capture{},
		now:     time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		leadID:  lead.ID,
		contact: lead.ContactEmail,
	}
	f.svc = NewService(st, redis.NewClient(&redis.Options{Addr: mr.Addr()}), f.jwt, Options{
		CodeLength:  6,
		CodeTTL:     10 * time.Minute,
		MaxAttempts: maxAttempts,
		Window:      15 * time.Minute,
		PortalURL:   "https://portal.example",
		Notifier:    f.sent,
		Now:         func() time.Time { return f.now },
	}, logger.NewTestLogger(t))
	return f
}

func TestIssueAndVerify(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	issued, err := f.svc.IssueCode(ctx, f.leadID)
	require.NoError(t, err)
	assert.Equal(t, "meera@acme.example", issued.Identifier)
	assert.Equal(t, f.now.Add(10*time.Minute), issued.ExpiresAt)

	code := f.sent.last()
	assert.Regexp(t, `^[0-9]{6}$`, code)
	assert.Equal(t, "+919812345678", f.sent.to[0].Phone)

	sess, err := f.svc.VerifyCode(ctx, " Meera@Acme.example ", code)
	require.NoError(t, err)
	assert.Equal(t, f.leadID, sess.LeadID)

	claims, err := f.jwt.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, f.leadID, claims.Subject)
	assert.Empty(t, claims.Role)

	_, err = f.svc.VerifyCode(ctx, f.contact, code)
	assert.Equal(t, errors.ErrCodePortalCodeNotFound, errors.CodeOf(err), "codes are single use")
}

func TestVerifyCode_WrongAndExpired(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.IssueCode(ctx, f.leadID)
	require.NoError(t, err)
	code := f.sent.last()

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyCode(ctx, f.contact, wrong)
	assert.Equal(t, errors.ErrCodePortalCodeNotFound, errors.CodeOf(err))

	_, err = f.svc.VerifyCode(ctx, f.contact, "")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	f.now = f.now.Add(10 * time.Minute)
	_, err = f.svc.VerifyCode(ctx, f.contact, code)
	assert.Equal(t, errors.ErrCodePortalCodeExpired, errors.CodeOf(err))
}

func TestIssueCode_RateLimited(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.IssueCode(ctx, f.leadID)
		require.NoError(t, err)
	}
	_, err := f.svc.IssueCode(ctx, f.leadID)
	assert.Equal(t, errors.ErrCodeRateLimited, errors.CodeOf(err))

	f.mr.FastForward(15 * time.Minute)
	_, err = f.svc.IssueCode(ctx, f.leadID)
	assert.NoError(t, err)

	// Every issued code stays valid until used or expired.
	_, err = f.svc.VerifyCode(ctx, f.contact, f.sent.codes[0])
	assert.NoError(t, err)
}

func TestVerifyCode_RateLimited(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.VerifyCode(ctx, f.contact, "123456")
		assert.Equal(t, errors.ErrCodePortalCodeNotFound, errors.CodeOf(err))
	}
	_, err := f.svc.VerifyCode(ctx, f.contact, "123456")
	assert.Equal(t, errors.ErrCodeRateLimited, errors.CodeOf(err))
}

func TestIssueCode_UnknownLead(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.svc.IssueCode(context.Background(), "missing")
	assert.Equal(t, errors.ErrCodeLeadNotFound, errors.CodeOf(err))
}

func TestIssueCode_RedisDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectIncr("portal:rate:issue:meera@acme.example").SetErr(stderrors.New("connection refused"))

	st := memory.New()
	require.NoError(t, st.Leads().Create(context.Background(), &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0001", CompanyID: "C1", ContactEmail: "meera@acme.example", Version: 1,
	}))
	svc := NewService(st, rdb, auth.NewJWTIssuer("s", "", "", 0), Options{}, logger.NewTestLogger(t))

	_, err := svc.IssueCode(context.Background(), "lead-1")
	assert.Equal(t, errors.ErrCodeCacheError, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNumericCode(t *testing.T) {
	for _, n := range []int{4, 6, 8} {
		code, err := numericCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}
