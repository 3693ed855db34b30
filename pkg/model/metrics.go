package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MetricType denotes which group of reported metrics a metric belongs to.
type MetricType string

const (
	// TrainingMetricType is the group of metrics reported during training.
	TrainingMetricType MetricType = "training"
	// ValidationMetricType is the group of metrics reported by validation.
	ValidationMetricType MetricType = "validation"
)

// Validate implements the check.Validatable interface.
func (t MetricType) Validate() []error {
	switch t {
	case TrainingMetricType, ValidationMetricType:
		return nil
	default:
		return []error{errors.Errorf("unknown metric type %q", t)}
	}
}

// JSONPath is the key the metric group is stored under in the metrics table.
func (t MetricType) JSONPath() string {
	if t == ValidationMetricType {
		return "validation_metrics"
	}
	return "avg_metrics"
}

// MetricName identifies one metric of a trial.
type MetricName struct {
	Name string     `json:"name"`
	Type MetricType `json:"type"`
}

// String renders the metric as a dimension label, e.g. "[V] loss".
func (m MetricName) String() string {
	prefix := "T"
	if m.Type == ValidationMetricType {
		prefix = "V"
	}
	return fmt.Sprintf("[%s] %s", prefix, m.Name)
}

// Validate implements the check.Validatable interface.
func (m MetricName) Validate() []error {
	errs := m.Type.Validate()
	if m.Name == "" {
		errs = append(errs, errors.New("metric name must be set"))
	}
	return errs
}

// MetricIdentifier is a metric written as "<group>.<name>".
type MetricIdentifier struct {
	Group MetricType
	Name  string
}

// DeserializeMetricIdentifier splits s on its first dot; both halves must be non-empty.
func DeserializeMetricIdentifier(s string) (*MetricIdentifier, error) {
	group, name, ok := strings.Cut(s, ".")
	if !ok || group == "" || name == "" {
		return nil, errors.Errorf("invalid metric identifier %q, expected <group>.<name>", s)
	}
	return &MetricIdentifier{Group: MetricType(group), Name: name}, nil
}

// MetricName converts the identifier into a MetricName.
func (m MetricIdentifier) MetricName() MetricName {
	return MetricName{Name: m.Name, Type: m.Group}
}
