// Package telemetrytest reads counter values back out of a Metrics registry in tests.
package telemetrytest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// Counter returns the value of the counter series name{labels}, or 0 when the series
// has not been observed yet.
func Counter(t testing.TB, m *telemetry.Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for _, pair := range pairs {
				if labels[pair.GetName()] != pair.GetValue() {
					continue series
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
