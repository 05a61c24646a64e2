package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// Save writes the registry back with stable ordering.
func Save(path string, reg *ActivityRegistry) error {
	sort.Slice(reg.Activities, func(i, j int) bool {
		if reg.Activities[i].Category != reg.Activities[j].Category {
			return reg.Activities[i].Category < reg.Activities[j].Category
		}
		return reg.Activities[i].TaskType < reg.Activities[j].TaskType
	})
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks structural consistency: unique task types and known error
// codes.
func (r *ActivityRegistry) Validate(knownCodes map[string]bool) []error {
	var errs []error
	seen := make(map[string]bool)
	for _, a := range r.Activities {
		if a.TaskType == "" {
			errs = append(errs, fmt.Errorf("activity %q has no taskType", a.ID))
			continue
		}
		if seen[a.TaskType] {
			errs = append(errs, fmt.Errorf("duplicate taskType %q", a.TaskType))
		}
		seen[a.TaskType] = true
		for _, code := range a.ErrorCodes {
			if knownCodes != nil && !knownCodes[code] {
				errs = append(errs, fmt.Errorf("activity %q lists unknown error code %q", a.TaskType, code))
			}
		}
	}
	return errs
}
