package reconcile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy controls per-field value-equality semantics during
// reconciliation. HubSpot writes cleared properties back as empty
// strings while Salesforce reports them as null, so whether "" and an
// absent value count as the same thing is a per-field decision.
type Policy struct {
	// Fields with EmptyEqualsNull treat an empty string on the live
	// record the same as an absent value
	Fields map[string]FieldPolicy `yaml:"fields"`
}

// FieldPolicy is the equality policy for one canonical field
type FieldPolicy struct {
	EmptyEqualsNull bool `yaml:"emptyEqualsNull"`
}

// DefaultPolicy distinguishes empty strings from absent values for
// every field
func DefaultPolicy() *Policy {
	return &Policy{Fields: map[string]FieldPolicy{}}
}

// LoadPolicy reads a per-field policy file
func LoadPolicy(path string) (*Policy, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reconcile policy: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(f, policy); err != nil {
		return nil, fmt.Errorf("failed to load reconcile policy: %w", err)
	}
	if policy.Fields == nil {
		policy.Fields = map[string]FieldPolicy{}
	}

	return policy, nil
}

// emptyEqualsNull reports whether empty string and absent collapse for
// a field
func (p *Policy) emptyEqualsNull(field string) bool {
	if p == nil {
		return false
	}
	return p.Fields[field].EmptyEqualsNull
}
