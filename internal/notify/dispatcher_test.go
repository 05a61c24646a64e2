package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	to, subject, html, text string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, html, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentEmail{to, subject, html, text})
	return "msg-1", nil
}

type fakeSMS struct {
	mu    sync.Mutex
	sent  []string
	delay time.Duration
}

func (f *fakeSMS) SendSMS(ctx context.Context, phone, message string) (string, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+":"+message)
	return "sms-1", nil
}

func newTestDispatcher(t *testing.T, email EmailSender, sms SMSSender) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Options{Email: email, SMS: sms, PortalURL: "https://portal.example.com"}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return d
}

func TestSend_AssessorAssigned(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := newTestDispatcher(t, email, sms)

	err := d.Send(context.Background(), TemplateAssessorAssigned,
		Recipient{Email: "asha@example.com", Phone: "+911234567890", Name: "Asha"},
		map[string]interface{}{"leadId": "IPO-2026-0001", "companyName": "Acme <Ltd>"})
	require.NoError(t, err)

	require.Len(t, email.sent, 1)
	got := email.sent[0]
	assert.Equal(t, "asha@example.com", got.to)
	assert.Equal(t, "New IPO readiness assessment: Acme <Ltd>", got.subject)
	assert.Contains(t, got.text, "Hello Asha")
	assert.Contains(t, got.text, "IPO-2026-0001")
	assert.Contains(t, got.html, "Acme &lt;Ltd&gt;")

	assert.Empty(t, sms.sent, "assignment has no SMS body")
}

func TestSend_DecisionAlsoGoesBySMS(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := newTestDispatcher(t, email, sms)

	err := d.Send(context.Background(), TemplateAssessmentRejected,
		Recipient{Email: "a@example.com", Phone: "+910000000000"},
		map[string]interface{}{"leadId": "IPO-2026-0002", "companyName": "Beta", "remark": "missing audit"})
	require.NoError(t, err)

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].text, "Reviewer remark: missing audit")
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+910000000000:IPO readiness assessment for Beta rejected: missing audit", sms.sent[0])
}

func TestSend_UnknownTemplate(t *testing.T) {
	d := newTestDispatcher(t, &fakeEmail{}, nil)

	err := d.Send(context.Background(), "nope", Recipient{Email: "a@example.com"}, nil)
	assert.Equal(t, errors.ErrCodeTemplateNotFound, errors.CodeOf(err))
}

func TestSend_DeliveryFailure(t *testing.T) {
	d := newTestDispatcher(t, &fakeEmail{err: stderrors.New("throttled")}, nil)

	err := d.Send(context.Background(), TemplatePortalAccess, Recipient{Email: "a@example.com"},
		map[string]interface{}{"code": "123456", "expiresInMinutes": 10})
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.CodeOf(err))
}

func TestSend_EmailFailureDoesNotStopSMS(t *testing.T) {
	email := &fakeEmail{err: stderrors.New("throttled")}
	sms := &fakeSMS{delay: 50 * time.Millisecond}
	d := newTestDispatcher(t, email, sms)

	err := d.Send(context.Background(), TemplateAssessmentRejected,
		Recipient{Email: "a@example.com", Phone: "+910000000000"},
		map[string]interface{}{"leadId": "IPO-2026-0003", "companyName": "Gamma", "remark": "no audit"})
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.CodeOf(err))

	sms.mu.Lock()
	defer sms.mu.Unlock()
	require.Len(t, sms.sent, 1)
	assert.Contains(t, sms.sent[0], "Gamma")
}

func TestDispatch_FailureIsSwallowed(t *testing.T) {
	d := newTestDispatcher(t, &fakeEmail{err: stderrors.New("down")}, nil)

	assert.NotPanics(t, func() {
		d.Dispatch(TemplateAssessmentApproved, Recipient{Email: "a@example.com"}, map[string]interface{}{"companyName": "X"})
		d.Wait()
	})
}

func TestDispatch_Delivers(t *testing.T) {
	email := &fakeEmail{}
	d := newTestDispatcher(t, email, nil)

	d.Dispatch(TemplatePortalAccess, Recipient{Email: "client@example.com"},
		map[string]interface{}{"code": "654321", "expiresInMinutes": 10})
	d.Wait()

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].text, "654321")
	assert.Contains(t, email.sent[0].text, "https://portal.example.com")
}
