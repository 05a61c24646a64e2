// Package validation checks job payloads against the activity registry's
// JSON schemas and domain structs against their validate tags.
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/pkg/registry"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// Validator is safe for concurrent use.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
	structs *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
		structs: v,
	}
}

// LoadRegistry compiles the input schema of every registered activity.
func (v *Validator) LoadRegistry(reg *registry.ActivityRegistry) error {
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		if err := v.Register(a.TaskType, a.InputSchema); err != nil {
			return err
		}
	}
	return nil
}

// Register compiles schema for taskType.
func (v *Validator) Register(taskType string, schema map[string]interface{}) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("compile input schema for %s: %w", taskType, err)
	}
	v.mu.Lock()
	v.schemas[taskType] = compiled
	v.mu.Unlock()
	return nil
}

// ValidateJob checks raw job variables. Task types without a schema pass.
func (v *Validator) ValidateJob(taskType, variables string) error {
	v.mu.RLock()
	schema, ok := v.schemas[taskType]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	if !json.Valid([]byte(variables)) {
		return errors.NewInvalidInputError("job variables are not valid JSON")
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("schema validation: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return errors.NewInvalidInputError(strings.Join(msgs, "; ")).WithMetadata("violations", msgs)
}

// ValidateStruct applies `validate` tags and reports violations by JSON
// field name.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.structs.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewInvalidInputError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.NewInvalidInputError(strings.Join(msgs, "; ")).WithMetadata("violations", msgs)
}
