package loader

import (
	"time"

	"go.uber.org/zap"
)

// Reporter emits periodic throughput logging while a loader streams its
// source. Pure observability: disabling it cannot change run outcomes.
type Reporter struct {
	log   *zap.Logger
	every int
	start time.Time
	now   func() time.Time
}

// NewReporter creates a reporter logging every `every` source rows.
func NewReporter(log *zap.Logger, every int) *Reporter {
	r := &Reporter{log: log, every: every, now: time.Now}
	r.start = r.now()
	return r
}

// Report logs progress when rowsDone falls on the configured cadence.
func (r *Reporter) Report(rowsDone, totalRows int, accepted int64) {
	if r.every <= 0 || rowsDone == 0 || rowsDone%r.every != 0 {
		return
	}

	elapsed := r.now().Sub(r.start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(accepted) / elapsed.Seconds()
	}

	fields := []zap.Field{
		zap.Int("rows", rowsDone),
		zap.Int64("accepted", accepted),
		zap.Float64("rows_per_sec", rate),
	}
	if totalRows > 0 {
		fields = append(fields, zap.Float64("percent", float64(rowsDone)/float64(totalRows)*100))
	}
	r.log.Info("progress", fields...)
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	return r.now().Sub(r.start)
}
