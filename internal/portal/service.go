// Package portal issues and verifies the one-time codes that let a company
// contact sign in to the client portal.
package portal

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	issueRatePrefix  = "portal:rate:issue:"
	verifyRatePrefix = "portal:rate:verify:"
)

// TokenSigner is satisfied by *auth.JWTIssuer.
type TokenSigner interface {
	Sign(subject, email string, role models.Role) (string, time.Time, error)
}

type Options struct {
	CodeLength  int
	CodeTTL     time.Duration
	MaxAttempts int
	Window      time.Duration
	PortalURL   string
	Notifier    notify.Notifier
	Now         func() time.Time
	// Generate returns a numeric code of length n.
	Generate func(n int) (string, error)
}

func OptionsFromConfig(cfg config.PortalConfig, portalURL string) Options {
	return Options{
		CodeLength:  cfg.CodeLength,
		CodeTTL:     time.Duration(cfg.CodeTTL) * time.Second,
		MaxAttempts: cfg.MaxAttempts,
		Window:      time.Duration(cfg.Window) * time.Second,
		PortalURL:   portalURL,
	}
}

type Service struct {
	store  store.Store
	rdb    *redis.Client
	signer TokenSigner
	opts   Options
	logger logger.Logger
}

func NewService(st store.Store, rdb *redis.Client, signer TokenSigner, opts Options, log logger.Logger) *Service {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Generate == nil {
		opts.Generate = numericCode
	}
	return &Service{
		store:  st,
		rdb:    rdb,
		signer: signer,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "portal"}),
	}
}

type Issued struct {
	Identifier string    `json:"identifier"`
	LeadID     string    `json:"leadId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// IssueCode sends a fresh code to the lead's contact. The plain code only
// leaves through the notification.
func (s *Service) IssueCode(ctx context.Context, leadID string) (*Issued, error) {
	lead, err := s.store.Leads().Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	identifier := normalize(lead.ContactEmail)
	if err := s.limit(ctx, issueRatePrefix+identifier); err != nil {
		return nil, err
	}

	code, err := s.opts.Generate(s.opts.CodeLength)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("generate portal code: %w", err))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("hash portal code: %w", err))
	}

	now := s.opts.Now()
	pc := &models.PortalCode{
		ID:         uuid.New().String(),
		Identifier: identifier,
		CodeHash:   string(hash),
		LeadID:     lead.ID,
		ExpiresAt:  now.Add(s.opts.CodeTTL),
		CreatedAt:  now,
	}
	if err := s.store.PortalCodes().Create(ctx, pc); err != nil {
		return nil, err
	}

	s.opts.Notifier.Dispatch(notify.TemplatePortalAccess,
		notify.Recipient{Email: lead.ContactEmail, Phone: lead.ContactPhone, Name: lead.ContactName},
		map[string]interface{}{
			"code":             code,
			"expiresInMinutes": int(s.opts.CodeTTL / time.Minute),
			"portalUrl":        s.opts.PortalURL,
		})
	s.logger.Info("portal code issued", map[string]interface{}{"leadId": lead.LeadID})

	return &Issued{Identifier: identifier, LeadID: lead.ID, ExpiresAt: pc.ExpiresAt}, nil
}

type Session struct {
	Token     string    `json:"token"`
	LeadID    string    `json:"leadId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyCode consumes a matching unexpired code and signs a portal session
// for its lead. Codes are single use.
func (s *Service) VerifyCode(ctx context.Context, identifier, code string) (*Session, error) {
	identifier = normalize(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return nil, errors.NewInvalidInputError("identifier and code are required")
	}
	if err := s.limit(ctx, verifyRatePrefix+identifier); err != nil {
		return nil, err
	}

	codes, err := s.store.PortalCodes().ListActive(ctx, identifier)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	for _, pc := range codes {
		if bcrypt.CompareHashAndPassword([]byte(pc.CodeHash), []byte(code)) != nil {
			continue
		}
		if !now.Before(pc.ExpiresAt) {
			return nil, errors.NewPortalCodeExpiredError(identifier)
		}
		if err := s.store.PortalCodes().Consume(ctx, pc.ID, now); err != nil {
			return nil, err
		}

		token, exp, err := s.signer.Sign(pc.LeadID, identifier, "")
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		if err := s.rdb.Del(ctx, verifyRatePrefix+identifier).Err(); err != nil {
			s.logger.Warn("failed to reset verify counter", map[string]interface{}{"error": err.Error()})
		}
		s.logger.Info("portal code verified", map[string]interface{}{"leadId": pc.LeadID})
		return &Session{Token: token, LeadID: pc.LeadID, ExpiresAt: exp}, nil
	}
	return nil, errors.NewNotFoundError(errors.ErrCodePortalCodeNotFound, "Portal code", identifier)
}

// limit counts one attempt against key and fails once MaxAttempts are
// used up. The window starts at the first attempt.
func (s *Service) limit(ctx context.Context, key string) error {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return errors.NewCacheError("rate limit", err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, s.opts.Window).Err(); err != nil {
			return errors.NewCacheError("rate limit window", err)
		}
	}
	if n > int64(s.opts.MaxAttempts) {
		return errors.NewRateLimitedError(fmt.Sprintf("%d attempts in %s", n-1, s.opts.Window))
	}
	return nil
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func numericCode(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
