package loader

import (
	"context"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/config"
	"github.com/geopop/ingest/pkg/ewkt"
	"github.com/geopop/ingest/pkg/geoperrors"
)

const countriesInsertSQL = `
	INSERT INTO countries (iso_a2, iso_a3, name, formal_name,
		continent, region_un, subregion, pop_est, geom)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_GeomFromEWKT($9))`

// countriesCommitEvery is the feature count between transaction commits.
// Country volume is tiny next to the grid and gazetteer, so individual
// inserts with periodic commits beat wiring geometries through COPY.
const countriesCommitEvery = 50

// neColumns are the Natural Earth attribute columns the loader reads.
var neColumns = []string{
	"NAME", "CONTINENT", "ISO_A2_EH", "ISO_A3_EH",
	"FORMAL_EN", "REGION_UN", "SUBREGION", "POP_EST",
}

// CountriesStats summarizes a country-boundaries load.
type CountriesStats struct {
	Accepted int64
	Skipped  int64
}

// countryRow is one normalized countries record ready for insertion.
type countryRow struct {
	ISOA2      *string
	ISOA3      *string
	Name       string
	FormalName *string
	Continent  string
	RegionUN   *string
	Subregion  *string
	PopEst     *int64
	GeomEWKT   string
}

// CountriesLoader loads Natural Earth admin-0 country boundaries into the
// countries table.
type CountriesLoader struct {
	cfg     *config.Config
	shpPath string
	log     *zap.Logger
}

// NewCountriesLoader creates a loader over a country-boundaries shapefile.
func NewCountriesLoader(cfg *config.Config, shpPath string, log *zap.Logger) *CountriesLoader {
	return &CountriesLoader{
		cfg:     cfg,
		shpPath: shpPath,
		log:     log.With(zap.String("loader", "naturalearth")),
	}
}

// Run executes the Connect, Truncate, Stream, and Finalize stages.
func (l *CountriesLoader) Run(ctx context.Context) error {
	dec, err := shp.NewDecoder(l.shpPath)
	if err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to open shapefile").
			WithDetail("path", l.shpPath).
			WithDetail("hint", "run: make download-naturalearth")
	}
	defer dec.Close()

	conn, err := Connect(ctx, l.cfg, l.log)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if err := truncate(ctx, conn, "TRUNCATE countries RESTART IDENTITY CASCADE"); err != nil {
		return err
	}
	l.log.Info("truncated countries table")

	stats, err := l.stream(ctx, conn, dec)
	if err != nil {
		return err
	}

	l.log.Info("countries load complete",
		zap.Int64("accepted", stats.Accepted),
		zap.Int64("skipped", stats.Skipped))

	return vacuumAnalyze(ctx, conn, l.log, "countries")
}

// stream decodes features one at a time and inserts the usable ones,
// committing every countriesCommitEvery features.
func (l *CountriesLoader) stream(ctx context.Context, conn *pgx.Conn, dec *shp.Decoder) (CountriesStats, error) {
	var stats CountriesStats

	tx, err := conn.Begin(ctx)
	if err != nil {
		return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeConnection, "failed to begin transaction")
	}

	for {
		g, fields, more := dec.DecodeRowFields(neColumns...)
		if !more {
			break
		}

		row, err := convertCountry(g, fields)
		if err != nil {
			stats.Skipped++
			continue
		}

		_, err = tx.Exec(ctx, countriesInsertSQL,
			row.ISOA2, row.ISOA3, row.Name, row.FormalName,
			row.Continent, row.RegionUN, row.Subregion, row.PopEst, row.GeomEWKT)
		if err != nil {
			_ = tx.Rollback(ctx)
			return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "country insert failed").
				WithDetail("name", row.Name)
		}
		stats.Accepted++

		if stats.Accepted%countriesCommitEvery == 0 {
			if err := tx.Commit(ctx); err != nil {
				return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "commit failed")
			}
			tx, err = conn.Begin(ctx)
			if err != nil {
				return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeConnection, "failed to begin transaction")
			}
		}
	}

	if err := dec.Error(); err != nil {
		_ = tx.Rollback(ctx)
		return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeData, "shapefile decode failed")
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "final commit failed")
	}
	return stats, nil
}

// convertCountry turns a decoded feature into a normalized countries row.
// Features without a name or continent, and features whose geometry is
// neither polygon nor multi-polygon, are rejected for the caller to count.
func convertCountry(g geom.Geom, fields map[string]string) (*countryRow, error) {
	name := strings.TrimSpace(fields["NAME"])
	continent := strings.TrimSpace(fields["CONTINENT"])
	if name == "" || continent == "" {
		return nil, geoperrors.New(geoperrors.ErrorTypeData, "feature missing name or continent")
	}

	mp, err := ewkt.Normalize(g)
	if err != nil {
		return nil, err
	}
	encoded, err := ewkt.MultiPolygon(mp)
	if err != nil {
		return nil, err
	}

	return &countryRow{
		ISOA2:      normalizeISO(fields["ISO_A2_EH"]),
		ISOA3:      normalizeISO(fields["ISO_A3_EH"]),
		Name:       name,
		FormalName: optionalString(fields["FORMAL_EN"]),
		Continent:  continent,
		RegionUN:   optionalString(fields["REGION_UN"]),
		Subregion:  optionalString(fields["SUBREGION"]),
		PopEst:     parsePopEstimate(fields["POP_EST"]),
		GeomEWKT:   encoded,
	}, nil
}

// normalizeISO maps the Natural Earth "no code" sentinels to NULL.
func normalizeISO(s string) *string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-99", "-1":
		return nil
	}
	return &s
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parsePopEstimate parses the POP_EST attribute leniently: the column is
// numeric but sometimes rendered in scientific notation. Unparseable
// values become NULL.
func parsePopEstimate(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}
