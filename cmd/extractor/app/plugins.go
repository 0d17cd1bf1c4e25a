package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/roman-kulish/gantry-extractors/internal/convert"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/mdcleaner"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/netcdf"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/repairer"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/sensorposition"
	"github.com/roman-kulish/gantry-extractors/internal/ledger"
	"github.com/roman-kulish/gantry-extractors/internal/position"
)

// SensorPosition builds the geostreams positional extractor
func SensorPosition() Builder {
	return func(ctx context.Context, config *Config, store ledger.Store, logger *slog.Logger) (*Plugin, error) {
		projector, err := position.NewProjector(config.Reference())
		if err != nil {
			return nil, err
		}

		ext, err := sensorposition.New(config.ExtractorConfig(sensorposition.Name),
			sensorposition.WithLogger(logger),
			sensorposition.WithStore(store),
			sensorposition.WithResolver(config.Resolver()),
			sensorposition.WithProjector(projector),
		)
		if err != nil {
			return nil, err
		}
		return &Plugin{Extractor: ext, RoutingKeys: sensorposition.RoutingKeys}, nil
	}
}

// NetCDF builds the header dump extractor writing to the output bucket. The
// output is a bucket URL or a local directory.
func NetCDF(output string, overwrite bool) Builder {
	return func(ctx context.Context, config *Config, store ledger.Store, logger *slog.Logger) (*Plugin, error) {
		dumper, err := convert.NewRunner(convert.NCKSRuntime, convert.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		bucketURL, err := outputURL(output)
		if err != nil {
			return nil, err
		}

		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, fmt.Errorf("opening output bucket %s: %w", bucketURL, err)
		}

		logger.Info("writing outputs", slog.String("bucket", bucketURL), slog.Bool("overwrite", overwrite))

		ext := netcdf.New(bucket, dumper, netcdf.WithLogger(logger), netcdf.WithOverwrite(overwrite))
		return &Plugin{Extractor: ext, RoutingKeys: netcdf.RoutingKeys, close: bucket.Close}, nil
	}
}

// MetadataCleaner builds the metadata cleaning extractor
func MetadataCleaner(userID string, deleteExisting bool) Builder {
	return func(ctx context.Context, config *Config, store ledger.Store, logger *slog.Logger) (*Plugin, error) {
		options := []func(e *mdcleaner.Extractor){
			mdcleaner.WithLogger(logger),
			mdcleaner.WithDelete(deleteExisting),
		}
		if userID != "" {
			options = append(options, mdcleaner.WithUserID(userID))
		}

		ext := mdcleaner.New(config.ExtractorConfig(mdcleaner.Name), options...)
		return &Plugin{Extractor: ext, RoutingKeys: mdcleaner.RoutingKeys}, nil
	}
}

// Repairer builds the dataset repair extractor
func Repairer(callback string) Builder {
	return func(ctx context.Context, config *Config, store ledger.Store, logger *slog.Logger) (*Plugin, error) {
		ext := repairer.New(config.ExtractorConfig(repairer.Name),
			repairer.WithLogger(logger),
			repairer.WithCallback(callback),
		)
		return &Plugin{Extractor: ext, RoutingKeys: repairer.RoutingKeys}, nil
	}
}

// outputURL turns a local directory into a file bucket URL and makes sure the
// directory of a file bucket exists.
func outputURL(output string) (string, error) {
	if output == "" {
		output = netcdf.DefaultOutput
	}

	if !strings.Contains(output, "://") {
		abs, err := filepath.Abs(output)
		if err != nil {
			return "", fmt.Errorf("resolving output directory: %w", err)
		}
		output = "file://" + filepath.ToSlash(abs)
	}

	u, err := url.Parse(output)
	if err != nil {
		return "", fmt.Errorf("parsing output URL: %w", err)
	}

	if u.Scheme == "file" {
		if err = os.MkdirAll(filepath.FromSlash(u.Path), 0o755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}

	return output, nil
}
