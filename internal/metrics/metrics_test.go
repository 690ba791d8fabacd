package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLifecycle(t *testing.T) {
	m := New()
	m.ObserveLifecycle("start", nil)
	m.ObserveLifecycle("start", nil)
	m.ObserveLifecycle("stop", errors.New("not running"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lifecycle.WithLabelValues("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lifecycle.WithLabelValues("stop", "error")))
}

func TestObserveBackup(t *testing.T) {
	m := New()
	m.ObserveBackup("full", "online", 3*time.Second, 2048, nil)
	m.ObserveBackup("full", "online", time.Second, 0, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("full", "online", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("full", "online", "error")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.backupSize))

	problems, err := testutil.CollectAndLint(m.backups)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveLifecycle("start", nil)
	m.ObserveBackup("full", "offline", time.Second, 1, nil)
}

func TestRegistryGather(t *testing.T) {
	m := New()
	m.ObserveLifecycle("restart", nil)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "spud_lifecycle_operations_total") {
			found = true
		}
	}
	assert.True(t, found)
}
