package loader

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/geopop/ingest/pkg/geoperrors"
)

// CopyExecutor transmits one COPY payload to the store inside a
// transaction. Implementations commit on success and roll back on failure;
// any error is terminal for the run.
type CopyExecutor interface {
	CopyFrom(ctx context.Context, copySQL string, payload io.Reader) (int64, error)
}

// CopyBuffer accumulates wire-encoded records and flushes them through a
// CopyExecutor whenever the record count reaches the configured threshold.
// Records are newline-terminated lines of tab-separated fields whose order
// must match the column list in the COPY statement.
type CopyBuffer struct {
	exec      CopyExecutor
	copySQL   string
	threshold int

	buf   bytes.Buffer
	count int
	total int64
}

// NewCopyBuffer creates a buffer flushing through exec with the given COPY
// statement and record threshold.
func NewCopyBuffer(exec CopyExecutor, copySQL string, threshold int) *CopyBuffer {
	if threshold < 1 {
		threshold = 1
	}
	return &CopyBuffer{exec: exec, copySQL: copySQL, threshold: threshold}
}

// Add appends one record and flushes if the threshold is reached. Fields
// must already be wire-safe (no embedded tabs or newlines).
func (b *CopyBuffer) Add(ctx context.Context, fields ...string) error {
	for i, f := range fields {
		if i > 0 {
			b.buf.WriteByte('\t')
		}
		b.buf.WriteString(f)
	}
	b.buf.WriteByte('\n')
	b.count++

	if b.count >= b.threshold {
		return b.flush(ctx)
	}
	return nil
}

// Flush transmits any buffered remainder. Called once at end-of-stream so
// a final partial batch is never lost.
func (b *CopyBuffer) Flush(ctx context.Context) error {
	if b.count == 0 {
		return nil
	}
	return b.flush(ctx)
}

func (b *CopyBuffer) flush(ctx context.Context) error {
	n := b.count
	if _, err := b.exec.CopyFrom(ctx, b.copySQL, bytes.NewReader(b.buf.Bytes())); err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "bulk copy failed").
			WithDetail("rows", n)
	}
	b.total += int64(n)
	b.buf.Reset()
	b.count = 0
	return nil
}

// Pending returns the number of records buffered since the last flush.
func (b *CopyBuffer) Pending() int {
	return b.count
}

// Total returns the number of records flushed so far.
func (b *CopyBuffer) Total() int64 {
	return b.total
}

// formatValue renders a numeric value with bounded significant digits, the
// same representation the store parses back into its numeric columns.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatCellID renders a canonical cell identifier.
func formatCellID(id int64) string {
	return strconv.FormatInt(id, 10)
}
