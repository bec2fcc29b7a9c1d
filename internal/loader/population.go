package loader

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/config"
	"github.com/geopop/ingest/pkg/grid"
	"github.com/geopop/ingest/pkg/raster"
)

const (
	populationCopySQL = "COPY population (cell_id, pop) FROM STDIN"

	// DefaultPopulationBatch is the COPY flush threshold for the raster
	// loader. Large batches keep the COPY stream saturated; memory stays
	// bounded to one batch of encoded text.
	DefaultPopulationBatch = 500_000

	// populationReportEvery is the progress cadence in raster rows.
	populationReportEvery = 1000
)

// PopulationStats summarizes a population load.
type PopulationStats struct {
	Accepted    int64
	OutOfBounds int64
	Duplicates  int64
}

// PopulationLoader streams a global population raster into the population
// table, one row of canonical (cell_id, pop) pairs per accepted pixel.
type PopulationLoader struct {
	cfg       *config.Config
	src       raster.Source
	log       *zap.Logger
	batchSize int
}

// NewPopulationLoader creates a loader over an opened raster source.
func NewPopulationLoader(cfg *config.Config, src raster.Source, log *zap.Logger) *PopulationLoader {
	return &PopulationLoader{
		cfg:       cfg,
		src:       src,
		log:       log.With(zap.String("loader", "population")),
		batchSize: DefaultPopulationBatch,
	}
}

// SetBatchSize overrides the COPY flush threshold.
func (l *PopulationLoader) SetBatchSize(n int) {
	if n > 0 {
		l.batchSize = n
	}
}

// Run executes the Connect, Truncate, Stream, and Finalize stages.
func (l *PopulationLoader) Run(ctx context.Context) error {
	geo := l.src.Geometry()
	l.log.Info("opening raster",
		zap.Int("width", geo.Width),
		zap.Int("height", geo.Height),
		zap.Bool("has_nodata", geo.HasNoData),
		zap.Float64("nodata", geo.NoData))

	conn, err := Connect(ctx, l.cfg, l.log)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if err := truncate(ctx, conn, "TRUNCATE population"); err != nil {
		return err
	}
	l.log.Info("truncated population table")

	buf := NewCopyBuffer(&pgxCopyExecutor{conn: conn}, populationCopySQL, l.batchSize)
	progress := NewReporter(l.log, populationReportEvery)

	stats, err := streamPopulation(ctx, l.src, buf, NewTracker(), progress)
	if err != nil {
		return err
	}

	elapsed := progress.Elapsed()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(stats.Accepted) / elapsed.Seconds()
	}
	l.log.Info("population load complete",
		zap.Int64("accepted", stats.Accepted),
		zap.Int64("skipped_out_of_bounds", stats.OutOfBounds),
		zap.Int64("skipped_duplicates", stats.Duplicates),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rows_per_sec", rate))

	return vacuumAnalyze(ctx, conn, l.log, "population")
}

// streamPopulation is the Stream stage: it walks the raster row-by-row and
// pushes each pixel through validity filtering, canonical indexing, and
// deduplication into the COPY buffer, flushing the remainder at
// end-of-stream.
func streamPopulation(ctx context.Context, src raster.Source, buf *CopyBuffer, dedup *Tracker, progress *Reporter) (PopulationStats, error) {
	var stats PopulationStats
	geo := src.Geometry()
	row := make([]float64, geo.Width)

	for r := 0; r < geo.Height; r++ {
		// An entire pixel row shares one canonical grid row; if that row
		// is outside the grid, skip the read altogether.
		crow := grid.RowIndex(geo.Transform.CenterLat(r))
		if crow < 0 || crow >= grid.NRows {
			stats.OutOfBounds++
			continue
		}

		if err := src.ReadRow(r, row); err != nil {
			return stats, err
		}

		for c, v := range row {
			if !validValue(v, geo.NoData, geo.HasNoData) {
				continue
			}

			ccol := grid.ColIndex(geo.Transform.CenterLon(c))
			if ccol < 0 || ccol >= grid.NCols {
				stats.OutOfBounds++
				continue
			}

			id := crow*grid.NCols + ccol
			if !dedup.Admit(id) {
				stats.Duplicates++
				continue
			}

			if err := buf.Add(ctx, formatCellID(id), formatValue(v)); err != nil {
				return stats, err
			}
			stats.Accepted++
		}

		progress.Report(r+1, geo.Height, stats.Accepted)
	}

	if err := buf.Flush(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// validValue classifies a raw pixel value: usable values are finite,
// strictly positive, and distinct from the nodata sentinel when one is
// defined. Invalid values are excluded silently; they are not anomalies
// worth counting.
func validValue(v, nodata float64, hasNodata bool) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if v <= 0 {
		return false
	}
	if hasNodata && v == nodata {
		return false
	}
	return true
}
