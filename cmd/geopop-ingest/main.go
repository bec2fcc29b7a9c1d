package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geopop/ingest/internal/loader"
	"github.com/geopop/ingest/pkg/config"
	"github.com/geopop/ingest/pkg/geoperrors"
	"github.com/geopop/ingest/pkg/logger"
	"github.com/geopop/ingest/pkg/raster"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "geopop-ingest",
		Short: "Bulk-load geospatial source datasets into PostgreSQL",
		Long: `geopop-ingest loads the source datasets of the geopop reverse-geocoding
database: the WorldPop population raster, the GeoNames gazetteer, and the
Natural Earth country boundaries. Each loader truncates its target tables
and streams the source in bulk, so reruns are idempotent.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("geopop-ingest v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(populationCommand())
	root.AddCommand(geonamesCommand())
	root.AddCommand(naturalEarthCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func populationCommand() *cobra.Command {
	var rasterPath, dataDir string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "population",
		Short: "Load the population raster into the population table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			path := rasterPath
			if path == "" {
				path, err = discoverRaster(dataDir)
				if err != nil {
					return err
				}
			}
			log.Info("loading population raster", zap.String("path", path))

			src, err := raster.Open(path)
			if err != nil {
				return err
			}
			defer src.Close()

			l := loader.NewPopulationLoader(cfg, src, log)
			l.SetBatchSize(batchSize)
			return l.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&rasterPath, "raster", "", "Path to the population GeoTIFF (discovered under --data-dir when empty)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory searched for the population GeoTIFF")
	cmd.Flags().IntVar(&batchSize, "batch-size", loader.DefaultPopulationBatch, "Rows per COPY batch")
	return cmd
}

func geonamesCommand() *cobra.Command {
	var dataDir string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "geonames",
		Short: "Load the GeoNames gazetteer and admin-code lookup tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			l := loader.NewGeoNamesLoader(cfg, dataDir, log)
			l.SetBatchSize(batchSize)
			return l.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", filepath.Join("data", "geonames"),
		"Directory holding allCountries.zip, admin1CodesASCII.txt, and admin2Codes.txt")
	cmd.Flags().IntVar(&batchSize, "batch-size", loader.DefaultGeoNamesBatch, "Rows per COPY batch")
	return cmd
}

func naturalEarthCommand() *cobra.Command {
	var shpPath string

	cmd := &cobra.Command{
		Use:   "naturalearth",
		Short: "Load the Natural Earth country boundaries into the countries table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			l := loader.NewCountriesLoader(cfg, shpPath, log)
			return l.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&shpPath, "shapefile",
		filepath.Join("data", "naturalearth", "ne_10m_admin_0_countries.shp"),
		"Path to the admin-0 countries shapefile")
	return cmd
}

// setup loads the run configuration and builds the root logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logger.With(zap.String("component", "geopop-ingest"))
	log.Info("configuration loaded", zap.String("target", cfg.Target()))
	return cfg, log, nil
}

// discoverRaster finds the WorldPop global 1km GeoTIFF under dir.
func discoverRaster(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to read data directory").
			WithDetail("path", dir).
			WithDetail("hint", "run: make download-worldpop")
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".tif") {
			continue
		}
		if strings.Contains(name, "global_pop_") && strings.Contains(name, "1km") {
			return filepath.Join(dir, name), nil
		}
	}

	return "", geoperrors.New(geoperrors.ErrorTypeFile, "no population GeoTIFF found").
		WithDetail("path", dir).
		WithDetail("hint", "run: make download-worldpop")
}
