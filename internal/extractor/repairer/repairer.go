package repairer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roman-kulish/gantry-extractors/internal/extractor"
)

// Name is the registered extractor name
const Name = "terra.dataset.repairer"

// RoutingKeys are the events the extractor listens to. It only runs when
// submitted to a dataset directly.
var RoutingKeys = []string{"extractors." + Name}

// targets are the raw file suffixes each sensor dataset must contain
var targets = map[string][]string{
	"stereoTop":    {"_left.bin", "_right.bin"},
	"flirIrCamera": {"_ir.bin"},
	"scanner3DTop": {},
}

// callbacks are the extractors re-run on a repaired dataset
var callbacks = map[string][]string{
	"stereoTop":    {"terra.stereo-rgb.bin2tif", "terra.metadata.sensorposition"},
	"flirIrCamera": {"terra.multispectral.flir2tif", "terra.metadata.sensorposition"},
	"scanner3DTop": {"terra.3dscanner.ply2las", "terra.3dscanner.heightmap", "terra.metadata.sensorposition"},
}

// Targets returns the file suffixes uploaded for a sensor
func Targets(sensor string) []string {
	return append([]string(nil), targets[sensor]...)
}

// Callbacks returns the extractors submitted for a sensor by default
func Callbacks(sensor string) []string {
	return append([]string(nil), callbacks[sensor]...)
}

// WithLogger sets the logger for the extractor
func WithLogger(logger *slog.Logger) func(e *Extractor) {
	return func(e *Extractor) {
		e.logger = logger.With(slog.String("extractor", Name))
	}
}

// WithCallback submits the named extractor instead of the sensor defaults
func WithCallback(name string) func(e *Extractor) {
	return func(e *Extractor) {
		e.callback = name
	}
}

// Extractor re-uploads raw sensor files missing from a dataset and triggers
// the extractors that consume them.
type Extractor struct {
	cfg      extractor.Config
	callback string
	logger   *slog.Logger
}

// New creates a new Extractor
func New(cfg extractor.Config, options ...func(e *Extractor)) *Extractor {
	cfg.SetDefaults()

	e := Extractor{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

func (e *Extractor) Name() string {
	return Name
}

// Check processes every dataset it is asked to
func (e *Extractor) Check(ctx context.Context, ev *extractor.Event) (extractor.CheckResult, error) {
	return extractor.Bypass, nil
}

// Process uploads the target files found in the dataset source directory and
// submits the callback extractions.
func (e *Extractor) Process(ctx context.Context, ev *extractor.Event) (*extractor.Result, error) {
	ds, err := ev.Dataset(ctx)
	if err != nil {
		return nil, extractor.Retryable(err)
	}

	name, err := extractor.ParseDatasetName(ds.Name)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With(slog.String("dataset", ds.ID), slog.String("sensor", name.Sensor))

	dir := rawDataDir(e.cfg.SourceDir(name), name.Sensor)
	logger.Info("searching for target files", slog.String("dir", dir))

	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		logger.Info("source directory not found", slog.String("dir", dir))
		return nil, fmt.Errorf("%w: %s not found", extractor.ErrNothingToDo, dir)
	}

	files, err := findTargets(dir, targets[name.Sensor])
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Error("target files not found", slog.String("dir", dir))
		return nil, fmt.Errorf("%w: no target files in %s", extractor.ErrNothingToDo, dir)
	}

	res := &extractor.Result{}
	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			return res, err
		}

		logger.Info("uploading file", slog.String("file", path))
		if _, err := ev.Client.UploadFileToDataset(ctx, ds.ID, path); err != nil {
			return res, extractor.Retryable(err)
		}
		res.Add(fi.Size())
	}

	submit := callbacks[name.Sensor]
	if e.callback != "" {
		submit = []string{e.callback}
	}
	if len(submit) == 0 {
		logger.Info("no default callback", slog.String("sensor", name.Sensor))
	}

	for _, cb := range submit {
		logger.Info("submitting callback extraction", slog.String("callback", cb))
		if err := ev.Client.SubmitExtraction(ctx, ds.ID, cb, nil); err != nil {
			return res, extractor.Retryable(err)
		}
	}

	res.Message = fmt.Sprintf("%d files uploaded, %d extractions submitted", res.FilesCreated, len(submit))
	return res, nil
}

// findTargets returns, for each suffix in order, the last file in dir whose
// name ends with it.
func findTargets(dir string, suffixes []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	found := make(map[string]string, len(suffixes))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(entry.Name(), suffix) {
				found[suffix] = filepath.Join(dir, entry.Name())
			}
		}
	}

	var files []string
	for _, suffix := range suffixes {
		if path, ok := found[suffix]; ok {
			files = append(files, path)
		}
	}
	return files, nil
}

// rawDataDir points scanner3DTop source directories, which live under Level_1,
// back at the raw captures.
func rawDataDir(dir, sensor string) string {
	if sensor != "scanner3DTop" {
		return dir
	}
	return strings.ReplaceAll(dir, "Level_1", "raw_data")
}
