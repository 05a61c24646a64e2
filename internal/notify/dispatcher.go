// Package notify sends transactional email and SMS on lifecycle transitions.
// Delivery is fire-and-forget: callers dispatch after their transaction has
// committed and a failed send is logged and counted, never returned to the
// transition that triggered it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"

	"golang.org/x/sync/errgroup"
)

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) (string, error)
}

// SMSSender is satisfied by aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Notifier is the sink the lifecycle services depend on.
type Notifier interface {
	Dispatch(template string, to Recipient, data map[string]interface{})
}

type Recipient struct {
	Email string
	Phone string
	Name  string
}

type Options struct {
	// Email and SMS may be nil to disable a channel.
	Email     EmailSender
	SMS       SMSSender
	PortalURL string
	Timeout   time.Duration
}

type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	portalURL string
	timeout   time.Duration
	templates map[string]*messageTemplate
	logger    logger.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(opts Options, log logger.Logger) (*Dispatcher, error) {
	templates, err := compileTemplates()
	if err != nil {
		return nil, fmt.Errorf("compile notification templates: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		email:     opts.Email,
		sms:       opts.SMS,
		portalURL: opts.PortalURL,
		timeout:   timeout,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}, nil
}

// Send renders template and delivers it on every enabled channel. Email and
// SMS go out concurrently and independently; a failed channel does not stop
// the other, and the first failure is returned.
func (d *Dispatcher) Send(ctx context.Context, template string, to Recipient, data map[string]interface{}) error {
	mt, ok := d.templates[template]
	if !ok {
		return errors.NewNotFoundError(errors.ErrCodeTemplateNotFound, "Notification template", template)
	}

	vars := make(map[string]interface{}, len(data)+2)
	vars["name"] = to.Name
	vars["portalUrl"] = d.portalURL
	for k, v := range data {
		vars[k] = v
	}

	msg, err := mt.render(vars)
	if err != nil {
		return errors.NewNotificationSendFailedError(template, err)
	}

	var g errgroup.Group
	if d.email != nil && to.Email != "" {
		g.Go(func() error {
			_, err := d.email.SendEmail(ctx, to.Email, msg.subject, msg.html, msg.text)
			record(template, "email", err)
			return err
		})
	}
	if d.sms != nil && to.Phone != "" && msg.sms != "" {
		g.Go(func() error {
			_, err := d.sms.SendSMS(ctx, to.Phone, msg.sms)
			record(template, "sms", err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return errors.NewNotificationSendFailedError(template, err)
	}
	return nil
}

// Dispatch sends in the background with the dispatcher's own timeout.
func (d *Dispatcher) Dispatch(template string, to Recipient, data map[string]interface{}) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.Send(ctx, template, to, data); err != nil {
			d.logger.Error("notification failed", map[string]interface{}{
				"template": template,
				"email":    to.Email,
				"error":    err.Error(),
			})
			return
		}
		d.logger.Debug("notification sent", map[string]interface{}{"template": template})
	}()
}

// Wait blocks until every dispatched notification has finished. Used on
// shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func record(template, channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.NotificationsSent.WithLabelValues(template, channel, outcome).Inc()
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Dispatch(string, Recipient, map[string]interface{}) {}
