package types

import (
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Quantity wraps resource.Quantity so descriptors can carry values
// like "500m" or "512Mi" through YAML manifests. resource.Quantity
// only implements the JSON interfaces; the YAML ones are added here.
type Quantity struct {
	resource.Quantity
}

// MustQuantity parses s or panics. Intended for tests and fixtures.
func MustQuantity(s string) Quantity {
	return Quantity{resource.MustParse(s)}
}

// UnmarshalYAML accepts any scalar node and parses it as a quantity.
func (q *Quantity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		q.Quantity = resource.Quantity{}
		return nil
	}
	parsed, err := resource.ParseQuantity(raw)
	if err != nil {
		return err
	}
	q.Quantity = parsed
	return nil
}

// MarshalYAML renders the quantity in canonical form.
func (q Quantity) MarshalYAML() (interface{}, error) {
	return q.String(), nil
}
