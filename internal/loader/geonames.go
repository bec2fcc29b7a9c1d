package loader

import (
	"archive/zip"
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/config"
	"github.com/geopop/ingest/pkg/ewkt"
	"github.com/geopop/ingest/pkg/geoperrors"
)

const (
	placesCopySQL = "COPY geonames (geonameid, name, latitude, longitude, " +
		"feature_code, country_code, admin1_code, admin2_code, " +
		"population, geom) FROM STDIN"

	// DefaultGeoNamesBatch is the COPY flush threshold for the gazetteer
	// loaders. Rows are wider than the population grid's, so the batch is
	// smaller.
	DefaultGeoNamesBatch = 100_000

	// geoNamesFieldCount is the minimum column count of an allCountries
	// record; the field positions below are fixed by the GeoNames export
	// schema.
	geoNamesFieldCount = 19

	fieldID           = 0
	fieldName         = 1
	fieldLatitude     = 4
	fieldLongitude    = 5
	fieldFeatureClass = 6
	fieldFeatureCode  = 7
	fieldCountryCode  = 8
	fieldAdmin1Code   = 10
	fieldAdmin2Code   = 11
	fieldPopulation   = 14

	// populatedPlaceClass marks the only feature class this system keeps.
	populatedPlaceClass = "P"

	placesReportEvery = 500_000

	// maxLineBytes bounds a single gazetteer line; the alternate-name
	// columns can run long.
	maxLineBytes = 1 << 20
)

// allCountriesEntry is the archive member holding the gazetteer records.
const allCountriesEntry = "allCountries.txt"

// wireSanitizer strips characters that would break the tab-separated COPY
// stream out of free-text values.
var wireSanitizer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// ensureUTF8 replaces invalid byte sequences with the replacement rune.
// The gazetteer dumps occasionally carry mojibake; the server would reject
// the entire COPY batch over a single bad byte.
func ensureUTF8(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	return strings.ToValidUTF8(line, "�")
}

// GeoNamesLoader loads the GeoNames gazetteer: two code/name lookup tables
// from plain text files and the populated places from the allCountries
// archive.
type GeoNamesLoader struct {
	cfg       *config.Config
	dataDir   string
	log       *zap.Logger
	batchSize int
}

// NewGeoNamesLoader creates a loader over a directory holding
// admin1CodesASCII.txt, admin2Codes.txt, and allCountries.zip.
func NewGeoNamesLoader(cfg *config.Config, dataDir string, log *zap.Logger) *GeoNamesLoader {
	return &GeoNamesLoader{
		cfg:       cfg,
		dataDir:   dataDir,
		log:       log.With(zap.String("loader", "geonames")),
		batchSize: DefaultGeoNamesBatch,
	}
}

// SetBatchSize overrides the COPY flush threshold.
func (l *GeoNamesLoader) SetBatchSize(n int) {
	if n > 0 {
		l.batchSize = n
	}
}

// Run executes the full gazetteer load: both lookup tables, then the
// populated places, then statistics refresh.
func (l *GeoNamesLoader) Run(ctx context.Context) error {
	if _, err := os.Stat(l.dataDir); err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "geonames data directory not found").
			WithDetail("path", l.dataDir).
			WithDetail("hint", "run: make download-geonames")
	}

	conn, err := Connect(ctx, l.cfg, l.log)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	exec := &pgxCopyExecutor{conn: conn}

	if err := l.loadLookup(ctx, conn, exec, "admin1CodesASCII.txt", "admin1_codes"); err != nil {
		return err
	}
	if err := l.loadLookup(ctx, conn, exec, "admin2Codes.txt", "admin2_codes"); err != nil {
		return err
	}
	if err := l.loadPlaces(ctx, conn, exec); err != nil {
		return err
	}

	return vacuumAnalyze(ctx, conn, l.log, "admin1_codes", "admin2_codes", "geonames")
}

// loadLookup loads one two-column code/name lookup table. A missing source
// file is a warning, not a failure: the gazetteer remains usable without
// the admin-code names.
func (l *GeoNamesLoader) loadLookup(ctx context.Context, conn *pgx.Conn, exec CopyExecutor, filename, table string) error {
	path := filepath.Join(l.dataDir, filename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn("lookup file not found, skipping", zap.String("path", path))
			return nil
		}
		return geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to open lookup file").
			WithDetail("path", path)
	}
	defer f.Close()

	if err := truncate(ctx, conn, "TRUNCATE "+table); err != nil {
		return err
	}

	buf := NewCopyBuffer(exec, "COPY "+table+" (code, name) FROM STDIN", l.batchSize)
	accepted, err := streamLookup(ctx, f, buf)
	if err != nil {
		return err
	}

	l.log.Info("lookup table loaded",
		zap.String("table", table),
		zap.Int64("rows", accepted))
	return nil
}

// streamLookup streams tab-separated code/name records into the COPY
// buffer, dropping comment lines and malformed rows.
func streamLookup(ctx context.Context, r io.Reader, buf *CopyBuffer) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var accepted int64
	for scanner.Scan() {
		line := ensureUTF8(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) < 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if code == "" || name == "" {
			continue
		}

		if err := buf.Add(ctx, code, wireSanitizer.Replace(name)); err != nil {
			return accepted, err
		}
		accepted++
	}
	if err := scanner.Err(); err != nil {
		return accepted, geoperrors.Wrap(err, geoperrors.ErrorTypeData, "lookup file read failed")
	}

	return accepted, buf.Flush(ctx)
}

// loadPlaces streams the allCountries archive into the geonames table,
// keeping only populated places. A missing archive is fatal: the table is
// the core of reverse geocoding.
func (l *GeoNamesLoader) loadPlaces(ctx context.Context, conn *pgx.Conn, exec CopyExecutor) error {
	zipPath := filepath.Join(l.dataDir, "allCountries.zip")
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to open geonames archive").
			WithDetail("path", zipPath).
			WithDetail("hint", "run: make download-geonames")
	}
	defer zr.Close()

	var entry io.ReadCloser
	for _, f := range zr.File {
		if f.Name == allCountriesEntry {
			entry, err = f.Open()
			if err != nil {
				return geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to open archive entry").
					WithDetail("entry", allCountriesEntry)
			}
			break
		}
	}
	if entry == nil {
		return geoperrors.Newf(geoperrors.ErrorTypeData, "archive does not contain %s", allCountriesEntry).
			WithDetail("path", zipPath)
	}
	defer entry.Close()

	if err := truncate(ctx, conn, "TRUNCATE geonames"); err != nil {
		return err
	}

	buf := NewCopyBuffer(exec, placesCopySQL, l.batchSize)
	progress := NewReporter(l.log, placesReportEvery)

	stats, err := streamPlaces(ctx, entry, buf, progress)
	if err != nil {
		return err
	}

	elapsed := progress.Elapsed()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(stats.Accepted) / elapsed.Seconds()
	}
	l.log.Info("populated places loaded",
		zap.Int64("accepted", stats.Accepted),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rows_per_sec", rate))
	return nil
}

// streamPlaces filters gazetteer records down to populated places and
// encodes them for the COPY stream, point geometry included.
func streamPlaces(ctx context.Context, r io.Reader, buf *CopyBuffer, progress *Reporter) (PlacesStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var stats PlacesStats
	lines := 0
	for scanner.Scan() {
		lines++
		progress.Report(lines, 0, stats.Accepted)

		parts := strings.Split(ensureUTF8(scanner.Text()), "\t")
		if len(parts) < geoNamesFieldCount {
			continue
		}
		if strings.TrimSpace(parts[fieldFeatureClass]) != populatedPlaceClass {
			continue
		}

		id := strings.TrimSpace(parts[fieldID])
		latStr := strings.TrimSpace(parts[fieldLatitude])
		lonStr := strings.TrimSpace(parts[fieldLongitude])
		if id == "" || latStr == "" || lonStr == "" {
			continue
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			continue
		}

		name := wireSanitizer.Replace(strings.TrimSpace(parts[fieldName]))
		population := strings.TrimSpace(parts[fieldPopulation])
		if population == "" {
			population = "0"
		}

		err = buf.Add(ctx,
			id,
			name,
			latStr,
			lonStr,
			strings.TrimSpace(parts[fieldFeatureCode]),
			strings.TrimSpace(parts[fieldCountryCode]),
			strings.TrimSpace(parts[fieldAdmin1Code]),
			strings.TrimSpace(parts[fieldAdmin2Code]),
			population,
			ewkt.Point(lon, lat))
		if err != nil {
			return stats, err
		}
		stats.Accepted++
	}
	if err := scanner.Err(); err != nil {
		return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeData, "gazetteer read failed")
	}

	return stats, buf.Flush(ctx)
}

// PlacesStats summarizes a populated-places load.
type PlacesStats struct {
	Accepted int64
}
