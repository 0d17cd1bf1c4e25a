package mdcleaner

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
const Name = "terra.metadata.cleaner"

// DefaultUserID is the platform user the cleaned metadata is attributed to
const DefaultUserID = "57adcb81c0a7465986583df1"

// RoutingKeys are the events the extractor listens to. It only runs when
// submitted to a dataset directly.
var RoutingKeys = []string{"extractors." + Name}

// WithLogger sets the logger for the extractor
func WithLogger(logger *slog.Logger) func(e *Extractor) {
	return func(e *Extractor) {
		e.logger = logger.With(slog.String("extractor", Name))
	}
}

// WithDelete removes existing dataset metadata before uploading
func WithDelete(del bool) func(e *Extractor) {
	return func(e *Extractor) {
		e.delete = del
	}
}

// WithUserID attributes the metadata to a platform user
func WithUserID(id string) func(e *Extractor) {
	return func(e *Extractor) {
		if id != "" {
			e.userID = id
		}
	}
}

// Extractor re-reads the raw metadata.json of a gantry dataset, normalizes its
// keys and replaces the dataset metadata with it.
type Extractor struct {
	cfg    extractor.Config
	delete bool
	userID string
	logger *slog.Logger
}

// New creates a new Extractor that deletes existing metadata
func New(cfg extractor.Config, options ...func(e *Extractor)) *Extractor {
	cfg.SetDefaults()

	e := Extractor{
		cfg:    cfg,
		delete: true,
		userID: DefaultUserID,
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

// Process uploads the cleaned metadata.json of the dataset
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

	if e.delete {
		if err := ev.Client.DeleteDatasetMetadata(ctx, ds.ID); err != nil {
			return nil, extractor.Retryable(err)
		}
		logger.Info("existing metadata deleted")
	}

	dir := e.cfg.SourceDir(name)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		logger.Info("source directory not found", slog.String("dir", dir))
		return nil, fmt.Errorf("%w: %s not found", extractor.ErrNothingToDo, dir)
	}

	file, err := findMetadataFile(dir)
	if err != nil {
		return nil, err
	}
	if file == "" {
		logger.Error("metadata.json not found", slog.String("dir", dir))
		return nil, fmt.Errorf("%w: no metadata.json in %s", extractor.ErrNothingToDo, dir)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	content, err := Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("cleaning %s: %w", file, err)
	}

	md, err := extractor.BuildUserMetadata(ev.Client.Host(), e.userID, content)
	if err != nil {
		return nil, err
	}
	if err := ev.Client.UploadDatasetMetadata(ctx, ds.ID, md); err != nil {
		return nil, extractor.Retryable(err)
	}

	logger.Info("metadata uploaded", slog.String("file", file))
	return &extractor.Result{FilesCreated: 1, BytesCreated: int64(len(md))}, nil
}

// findMetadataFile returns the last file in dir, in name order, whose name
// ends with metadata.json.
func findMetadataFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	var found string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "metadata.json") {
			found = filepath.Join(dir, entry.Name())
		}
	}
	return found, nil
}
