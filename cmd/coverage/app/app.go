package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/gantry-extractors/internal/ledger"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := ledger.NewSqliteStore(config.DBPath, ledger.ReadOnly())
	defer store.Close()

	return renderCoverage(ctx, store, config, logger)
}

func renderCoverage(ctx context.Context, store ledger.Store, config *Config, logger *slog.Logger) error {
	var opts []ledger.QueryOption
	var filters []any
	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, ledger.WithTimeRange(*config.StartTime, *config.EndTime))
		filters = append(filters,
			slog.String("start", config.StartTime.UTC().Format(time.DateTime)),
			slog.String("end", config.EndTime.UTC().Format(time.DateTime)))

	case config.StartTime != nil:
		opts = append(opts, ledger.WithStartTime(*config.StartTime))
		filters = append(filters, slog.String("start", config.StartTime.UTC().Format(time.DateTime)))

	case config.EndTime != nil:
		opts = append(opts, ledger.WithEndTime(*config.EndTime))
		filters = append(filters, slog.String("end", config.EndTime.UTC().Format(time.DateTime)))
	}

	logger.Info("reading footprints", append([]any{slog.String("sensor", config.Sensor)}, filters...)...)

	records, err := store.Footprints(ctx, config.Sensor, opts...)
	if err != nil {
		return fmt.Errorf("reading footprints: %w", err)
	}

	m, err := NewCoverageMap(config.Sensor, records, config.Scale)
	if err != nil {
		return err
	}

	logger.Info("finished reading footprints",
		slog.Group("stats",
			slog.String("footprints", humanize.Comma(int64(len(m.Footprints)))),
			slog.Int("skipped", m.Skipped),
			slog.String("zone", fmt.Sprintf("%d%c", m.ZoneNumber, m.ZoneLetter)),
			slog.String("extent", fmt.Sprintf("%s x %s", formatDistance(m.Bound.Width()), formatDistance(m.Bound.Height()))),
		))

	renderer := NewCoverageRenderer(RenderConfig{
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})

	logger.Info("rendering coverage",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", m.Width),
			slog.Int("height", m.Height),
		))

	img, err := renderer.Render(m)
	if err != nil {
		return fmt.Errorf("rendering coverage: %w", err)
	}

	return writeImage(config.OutputFile, config.Format, img)
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch format {
	case ImageJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	default:
		return png.Encode(out, img)
	}
}
