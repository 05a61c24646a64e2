package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseYAML = `
camunda:
  broker_address: localhost:26500
storage:
  driver: memory
database:
  redis:
    address: localhost:6379
auth:
  provider: jwt
  jwt:
    secret: ${TEST_IPO_JWT_SECRET}
    audience: ipo-readiness-staff
  allowed_users:
    - reviewer@example.com
workers:
  submit-assessment:
    enabled: true
  complete-eligibility:
    enabled: false
    timeout: 5000
`

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_IPO_JWT_SECRET", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWT.Secret)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2000, cfg.Autosave.IdleMs)
	assert.Equal(t, 3, cfg.Autosave.MaxAttempts)
	assert.Equal(t, 600, cfg.Portal.CodeTTL)
	assert.Equal(t, "leads", cfg.Search.LeadIndex)
	assert.Equal(t, ":8080", cfg.Server.Address)

	submit := cfg.Workers["submit-assessment"]
	assert.True(t, submit.Enabled)
	assert.Equal(t, 10, submit.MaxJobsActive)
	assert.Equal(t, 30000, submit.Timeout)

	assert.False(t, IsWorkerEnabled(cfg, "complete-eligibility"))
	assert.Equal(t, 5000, cfg.Workers["complete-eligibility"].Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "not-configured"))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing broker",
			yaml:    "storage:\n  driver: memory\ndatabase:\n  redis:\n    address: x\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "postgres without host",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  redis:\n    address: x\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown driver",
			yaml:    "camunda:\n  broker_address: b\nstorage:\n  driver: mongo\ndatabase:\n  redis:\n    address: x\n",
			wantErr: "storage.driver",
		},
		{
			name:    "jwt without audience",
			yaml:    "camunda:\n  broker_address: b\nstorage:\n  driver: memory\ndatabase:\n  redis:\n    address: x\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "auth.jwt.audience",
		},
		{
			name:    "jwt with the portal audience",
			yaml:    "camunda:\n  broker_address: b\nstorage:\n  driver: memory\ndatabase:\n  redis:\n    address: x\nauth:\n  jwt:\n    secret: s\n    audience: portal\n",
			wantErr: "auth.jwt.audience",
		},
		{
			name:    "keycloak without realm",
			yaml:    "camunda:\n  broker_address: b\nstorage:\n  driver: memory\ndatabase:\n  redis:\n    address: x\nauth:\n  provider: keycloak\n  keycloak:\n    url: http://kc\n",
			wantErr: "auth.keycloak",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthConfig_IsAllowed(t *testing.T) {
	a := AuthConfig{AllowedUsers: []string{"Reviewer@Example.com", " assessor@example.com "}}

	assert.True(t, a.IsAllowed("reviewer@example.com"))
	assert.True(t, a.IsAllowed("assessor@example.com"))
	assert.False(t, a.IsAllowed("intruder@example.com"))

	open := AuthConfig{}
	assert.True(t, open.IsAllowed("anyone@example.com"))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "ipo", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ipo sslmode=disable", p.GetDSN())
}
