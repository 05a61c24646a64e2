// Package companyregistry fetches company profiles from the registry provider,
// caching them in Redis.
package companyregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ipo-readiness/internal/common/errors"
	httpclient "ipo-readiness/internal/common/http"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "registry:company:"

// Profile is the registry's view of a company.
type Profile struct {
	CompanyID         string          `json:"cin"`
	LegalName         string          `json:"legalName"`
	CompanyStatus     string          `json:"companyStatus"`
	IncorporatedOn    string          `json:"incorporatedOn,omitempty"`
	PaidUpCapital     float64         `json:"paidUpCapital"`
	AuthorisedCapital float64         `json:"authorisedCapital"`
	ComplianceFlags   map[string]bool `json:"complianceFlags,omitempty"`
}

// Snapshot converts the profile into the fields cached on a lead.
func (p *Profile) Snapshot(fetchedAt time.Time) *models.RegistrySnapshot {
	flags := make(map[string]bool, len(p.ComplianceFlags))
	for k, v := range p.ComplianceFlags {
		flags[k] = v
	}
	return &models.RegistrySnapshot{
		LegalName:         p.LegalName,
		CompanyStatus:     p.CompanyStatus,
		IncorporatedOn:    p.IncorporatedOn,
		PaidUpCapital:     p.PaidUpCapital,
		AuthorisedCapital: p.AuthorisedCapital,
		ComplianceFlags:   flags,
		FetchedAt:         fetchedAt,
	}
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	redis      *redis.Client
	cacheTTL   time.Duration
	logger     logger.Logger
}

// NewClient builds a registry client. rdb may be nil to disable caching.
func NewClient(baseURL, apiKey string, httpClient *httpclient.Client, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		redis:      rdb,
		cacheTTL:   cacheTTL,
		logger:     log.WithFields(map[string]interface{}{"component": "company-registry"}),
	}
}

// GetProfile returns the profile for a company identifier, served from cache
// when present. fromCache reports which path answered.
func (c *Client) GetProfile(ctx context.Context, companyID string) (profile *Profile, fromCache bool, err error) {
	companyID = strings.ToUpper(strings.TrimSpace(companyID))
	if companyID == "" {
		return nil, false, errors.NewInvalidInputError("company identifier is required")
	}

	if p := c.cached(ctx, companyID); p != nil {
		return p, true, nil
	}

	p, err := c.fetch(ctx, companyID)
	if err != nil {
		return nil, false, err
	}

	if c.redis != nil {
		data, _ := json.Marshal(p)
		if err := c.redis.Set(ctx, cacheKeyPrefix+companyID, data, c.cacheTTL).Err(); err != nil {
			c.logger.Warn("failed to cache registry profile", map[string]interface{}{
				"companyId": companyID,
				"error":     err.Error(),
			})
		}
	}
	return p, false, nil
}

// Invalidate drops a cached profile.
func (c *Client) Invalidate(ctx context.Context, companyID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, cacheKeyPrefix+strings.ToUpper(companyID)).Err(); err != nil {
		return errors.NewCacheError("invalidate registry profile", err)
	}
	return nil
}

func (c *Client) cached(ctx context.Context, companyID string) *Profile {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, cacheKeyPrefix+companyID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("registry cache read failed", map[string]interface{}{
				"companyId": companyID,
				"error":     err.Error(),
			})
		}
		return nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Debug("discarding corrupt registry cache entry", map[string]interface{}{"companyId": companyID})
		return nil
	}
	return &p
}

func (c *Client) fetch(ctx context.Context, companyID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/companies/%s", c.baseURL, url.PathEscape(companyID))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("create registry request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, errors.NewRegistryUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError(errors.ErrCodeCompanyNotFound, "Company", companyID)
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		stdErr := errors.NewRegistryUnavailableError(err)
		stdErr.Retryable = err.(*httpclient.StatusError).Transient()
		return nil, stdErr
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.NewRegistryUnavailableError(fmt.Errorf("decode registry profile: %w", err))
	}
	if p.CompanyID == "" {
		p.CompanyID = companyID
	}
	return &p, nil
}
