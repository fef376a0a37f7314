package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Counters(t *testing.T) {
	r := New()
	r.Built()
	r.Built()
	r.Reused()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Components.WithLabelValues(OutcomeBuilt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Components.WithLabelValues(OutcomeReused)))

	start := time.Unix(1000, 0)
	r.Finished("build", start, start.Add(90*time.Second))
	assert.Equal(t, 90.0, testutil.ToFloat64(r.Duration.WithLabelValues("build")))
	assert.Equal(t, 1090.0, testutil.ToFloat64(r.LastSuccess.WithLabelValues("build")))
}

func TestRun_WriteTextfile(t *testing.T) {
	r := New()
	r.Reused()
	r.SnapshotChanged.Set(1)

	require.NoError(t, r.WriteTextfile(""))

	path := filepath.Join(t.TempDir(), "rdgo.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rdgo_components_total{outcome="reused"} 1`)
	assert.Contains(t, string(data), "rdgo_snapshot_changed 1")
}
