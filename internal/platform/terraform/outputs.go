package terraform

import (
	"encoding/json"
	"fmt"
)

// Outputs holds the raw JSON values of a terraform output -json call,
// keyed by output name.
type Outputs map[string]json.RawMessage

// String decodes the named output as a string.
func (o Outputs) String(name string) (string, error) {
	raw, ok := o[name]
	if !ok {
		return "", fmt.Errorf("terraform output %q not found", name)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("terraform output %q is not a string: %w", name, err)
	}
	return s, nil
}

// StringOr decodes the named output as a string, returning fallback when the
// output does not exist.
func (o Outputs) StringOr(name, fallback string) string {
	s, err := o.String(name)
	if err != nil {
		return fallback
	}
	return s
}
