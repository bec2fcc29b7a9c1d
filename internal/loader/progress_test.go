package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporterCadence(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewReporter(zap.New(core), 10)

	for i := 1; i <= 35; i++ {
		r.Report(i, 100, int64(i*2))
	}

	entries := logs.All()
	require.Len(t, entries, 3, "one entry per cadence multiple")
	for _, e := range entries {
		assert.Equal(t, "progress", e.Message)
	}

	fields := entries[0].ContextMap()
	assert.Equal(t, int64(10), fields["rows"])
	assert.Equal(t, int64(20), fields["accepted"])
	assert.InDelta(t, 10.0, fields["percent"], 1e-9)
}

func TestReporterOmitsPercentWithoutTotal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewReporter(zap.New(core), 5)

	r.Report(5, 0, 1)

	entries := logs.All()
	require.Len(t, entries, 1)
	_, ok := entries[0].ContextMap()["percent"]
	assert.False(t, ok)
}

func TestReporterElapsed(t *testing.T) {
	r := NewReporter(zap.NewNop(), 1)
	base := time.Now()
	r.start = base
	r.now = func() time.Time { return base.Add(3 * time.Second) }

	assert.Equal(t, 3*time.Second, r.Elapsed())
}
