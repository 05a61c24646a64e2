package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ipo-readiness/internal/common/errors"
	httpclient "ipo-readiness/internal/common/http"
	"ipo-readiness/internal/models"
)

// KeycloakVerifier validates access tokens through the realm's token
// introspection endpoint and maps realm roles onto ASSESSOR/REVIEWER.
type KeycloakVerifier struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client
}

// TokenInfo holds the fields read from the introspection response.
type TokenInfo struct {
	Active      bool   `json:"active"`
	Sub         string `json:"sub,omitempty"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	Exp         int64  `json:"exp,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakVerifier(baseURL, realm, clientID, clientSecret string, client *httpclient.Client) *KeycloakVerifier {
	return &KeycloakVerifier{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   client,
	}
}

func (k *KeycloakVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	info, err := k.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Claims{
		Subject: info.Sub,
		Email:   info.Email,
		Role:    roleFromRealm(info.RealmAccess.Roles),
	}, nil
}

func (k *KeycloakVerifier) introspect(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequest(http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("create introspection request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(ctx, req)
	if err != nil {
		return nil, errors.NewTimeoutError("keycloak", err)
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		stdErr := errors.NewUnauthorizedError(fmt.Sprintf("token introspection failed: %v", err))
		if err.(*httpclient.StatusError).Transient() {
			stdErr.Retryable = true
		}
		return nil, stdErr
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode introspection response: %w", err))
	}
	if !info.Active {
		return nil, errors.NewUnauthorizedError("token is expired, revoked or malformed")
	}
	if info.Sub == "" {
		return nil, errors.NewUnauthorizedError("token has no subject")
	}
	return &info, nil
}

// roleFromRealm picks REVIEWER over ASSESSOR when both are granted.
func roleFromRealm(roles []string) models.Role {
	var role models.Role
	for _, r := range roles {
		switch models.Role(strings.ToUpper(r)) {
		case models.RoleReviewer:
			return models.RoleReviewer
		case models.RoleAssessor:
			role = models.RoleAssessor
		}
	}
	return role
}
