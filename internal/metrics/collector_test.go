package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersAndGathers(t *testing.T) {
	m := New()
	m.RecordRDEOperationStarted()
	m.RecordRDEOperationCompleted()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(m)))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			var v float64
			if c := metric.GetCounter(); c != nil {
				v = c.GetValue()
			} else if g := metric.GetGauge(); g != nil {
				v = g.GetValue()
			}
			found[fam.GetName()] = v
		}
	}

	require.Equal(t, float64(1), found["pldm_rde_operations_started_total"])
	require.Equal(t, float64(1), found["pldm_rde_operations_completed_total"])
}
