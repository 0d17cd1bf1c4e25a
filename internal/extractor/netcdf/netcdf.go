package netcdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"gocloud.dev/blob"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/convert"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
)

// Name is the registered extractor name
const Name = "terra.netcdf"

// DefaultOutput is the bucket header dumps are written to
const DefaultOutput = "file:///home/extractor/sites/ua-mac/Level_1/netcdf"

// RoutingKeys are the events the extractor listens to
var RoutingKeys = []string{"*.file.application.x-netcdf", "*.file.application.x-netcdf4"}

// Dumper writes the header of a NetCDF file in one of the ncks formats
type Dumper interface {
	Dump(ctx context.Context, w io.Writer, input string, c convert.NCKSConfig) error
}

// WithLogger sets the logger for the extractor
func WithLogger(logger *slog.Logger) func(e *Extractor) {
	return func(e *Extractor) {
		e.logger = logger.With(slog.String("extractor", Name))
	}
}

// WithOverwrite regenerates outputs that already exist
func WithOverwrite(overwrite bool) func(e *Extractor) {
	return func(e *Extractor) {
		e.overwrite = overwrite
	}
}

// Extractor dumps NetCDF headers as CDL, XML and JSON, keeps them in the
// output bucket and attaches them to the parent dataset.
type Extractor struct {
	bucket    *blob.Bucket
	dumper    Dumper
	overwrite bool
	logger    *slog.Logger
}

// New creates a new Extractor writing to bucket
func New(bucket *blob.Bucket, dumper Dumper, options ...func(e *Extractor)) *Extractor {
	e := Extractor{
		bucket: bucket,
		dumper: dumper,
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

// Check downloads the file when any of its outputs is missing
func (e *Extractor) Check(ctx context.Context, ev *extractor.Event) (extractor.CheckResult, error) {
	if !isNetCDF(ev.Resource.Name) {
		return extractor.Ignore, nil
	}

	missing, err := e.missing(ctx, ev)
	if err != nil {
		return extractor.Ignore, err
	}
	if len(missing) == 0 {
		e.logger.Info("outputs already exist", slog.String("resource", ev.Resource.ID))
		return extractor.Ignore, nil
	}
	return extractor.Download, nil
}

// Process writes every missing output and uploads it to the parent dataset
func (e *Extractor) Process(ctx context.Context, ev *extractor.Event) (*extractor.Result, error) {
	if len(ev.Resource.LocalPaths) == 0 {
		return nil, fmt.Errorf("resource %s was not downloaded", ev.Resource.ID)
	}
	input := ev.Resource.LocalPaths[0]

	formats, err := e.missing(ctx, ev)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, extractor.ErrNothingToDo
	}

	prefix, err := e.prefix(ctx, ev)
	if err != nil {
		return nil, err
	}

	res := &extractor.Result{}
	for _, f := range formats {
		key := prefix + f.Extension()
		e.logger.Info("extracting header", slog.String("format", string(f)), slog.String("key", key))

		var buf bytes.Buffer
		if err := e.dumper.Dump(ctx, &buf, input, convert.HeaderDump(f)); err != nil {
			return res, fmt.Errorf("dumping %s header: %w", f, err)
		}
		content := buf.Bytes()

		if err := e.write(ctx, key, f, content); err != nil {
			return res, bus.Transient(err)
		}
		res.Add(int64(len(content)))

		if _, err := ev.Client.UploadToDataset(ctx, ev.Resource.ParentID, path.Base(key), bytes.NewReader(content)); err != nil {
			return res, extractor.Retryable(err)
		}

		if f == convert.FormatJSON {
			md, err := extractor.BuildMetadata(ev.Client.Host(), Name, ev.Resource.ID, content, bus.ResourceDataset)
			if err != nil {
				return res, err
			}
			if err := ev.Client.UploadDatasetMetadata(ctx, ev.Resource.ParentID, md); err != nil {
				return res, extractor.Retryable(err)
			}
		}
	}

	res.Message = fmt.Sprintf("%d outputs, %s", res.FilesCreated, humanize.Bytes(uint64(res.BytesCreated)))
	return res, nil
}

func (e *Extractor) write(ctx context.Context, key string, f convert.Format, content []byte) (err error) {
	w, err := e.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: f.ContentType()})
	if err != nil {
		return fmt.Errorf("opening %s: %w", key, err)
	}

	if _, err = w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	return nil
}

// missing returns the formats whose output is absent, or all of them when
// overwriting.
func (e *Extractor) missing(ctx context.Context, ev *extractor.Event) ([]convert.Format, error) {
	if e.overwrite {
		return convert.Formats, nil
	}

	prefix, err := e.prefix(ctx, ev)
	if err != nil {
		return nil, err
	}

	var formats []convert.Format
	for _, f := range convert.Formats {
		ok, err := e.bucket.Exists(ctx, prefix+f.Extension())
		if err != nil {
			return nil, bus.Transient(fmt.Errorf("checking output: %w", err))
		}
		if !ok {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// prefix is the output key without extension:
// <sensor>/<date>/<timestamp>/<file name without .nc>
func (e *Extractor) prefix(ctx context.Context, ev *extractor.Event) (string, error) {
	ds, err := ev.Dataset(ctx)
	if err != nil {
		return "", extractor.Retryable(err)
	}

	dir := ds.Name
	if name, err := extractor.ParseDatasetName(ds.Name); err == nil {
		dir = path.Join(name.Sensor, name.Date, name.Timestamp)
	}

	base := ev.Resource.Name
	if base == "" {
		base = ev.Resource.ID
	}
	base = strings.TrimSuffix(strings.TrimSuffix(path.Base(base), ".nc"), ".nc4")

	return path.Join(dir, base), nil
}

func isNetCDF(filename string) bool {
	return filename == "" || strings.HasSuffix(filename, ".nc") || strings.HasSuffix(filename, ".nc4")
}
