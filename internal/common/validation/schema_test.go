package validation

import (
	"testing"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{
		Activities: []registry.Activity{
			{
				TaskType: "submit-assessment",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"sessionToken", "assessmentId", "expectedVersion"},
					"properties": map[string]interface{}{
						"sessionToken":    map[string]interface{}{"type": "string", "minLength": 1},
						"assessmentId":    map[string]interface{}{"type": "string", "minLength": 1},
						"expectedVersion": map[string]interface{}{"type": "integer", "minimum": 1},
					},
				},
			},
			{TaskType: "no-schema"},
		},
	}
}

func TestValidateJob(t *testing.T) {
	v := New()
	require.NoError(t, v.LoadRegistry(testRegistry()))

	tests := []struct {
		name      string
		taskType  string
		variables string
		wantErr   bool
	}{
		{"valid", "submit-assessment", `{"sessionToken":"t","assessmentId":"a1","expectedVersion":2}`, false},
		{"missing version", "submit-assessment", `{"sessionToken":"t","assessmentId":"a1"}`, true},
		{"version zero", "submit-assessment", `{"sessionToken":"t","assessmentId":"a1","expectedVersion":0}`, true},
		{"not json", "submit-assessment", `{`, true},
		{"unregistered task passes", "no-schema", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJob(tt.taskType, tt.variables)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
		})
	}
}

func TestRegister_RejectsBrokenSchema(t *testing.T) {
	v := New()
	err := v.Register("broken", map[string]interface{}{"type": 42})
	assert.Error(t, err)
}

type contact struct {
	Name  string `json:"contactName" validate:"required"`
	Email string `json:"contactEmail" validate:"required,email"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateStruct(contact{Name: "A", Email: "a@example.com"}))

	err := v.ValidateStruct(contact{Name: "", Email: "nope"})
	require.Error(t, err)
	std, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Contains(t, std.Details, "contactName")
	assert.Contains(t, std.Details, "contactEmail")
}
