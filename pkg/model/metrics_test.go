package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricIdentifierDeserialize(t *testing.T) {
	tests := []struct {
		arg     string
		want    *MetricIdentifier
		wantErr bool
	}{
		{"validation.loss", &MetricIdentifier{Group: "validation", Name: "loss"}, false},
		{"training.accuracy", &MetricIdentifier{Group: "training", Name: "accuracy"}, false},
		{"", nil, true},
		{"validation", nil, true},
		{".loss", nil, true},
		{"..", nil, true},
		{".", nil, true},
		{"validation.", nil, true},
		{"validation.top.k", &MetricIdentifier{Group: "validation", Name: "top.k"}, false},
	}
	for idx, tt := range tests {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			got, err := DeserializeMetricIdentifier(tt.arg)
			if tt.wantErr {
				require.Error(t, err, "Expected error with arg %v", tt.arg)
			} else {
				require.NoError(t, err, "Unexpected error with arg %v", tt.arg)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMetricNameString(t *testing.T) {
	require.Equal(t, "[V] loss", MetricName{Name: "loss", Type: ValidationMetricType}.String())
	require.Equal(t, "[T] loss", MetricName{Name: "loss", Type: TrainingMetricType}.String())
}

func TestMetricNameValidate(t *testing.T) {
	require.Empty(t, MetricName{Name: "loss", Type: ValidationMetricType}.Validate())
	require.Len(t, MetricName{Type: "other"}.Validate(), 2)
	require.Equal(t, "validation_metrics", ValidationMetricType.JSONPath())
	require.Equal(t, "avg_metrics", TrainingMetricType.JSONPath())
}
