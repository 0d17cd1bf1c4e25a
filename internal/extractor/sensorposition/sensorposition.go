package sensorposition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
	"github.com/roman-kulish/gantry-extractors/internal/ledger"
	"github.com/roman-kulish/gantry-extractors/internal/position"
)

// Name is the registered extractor name
const Name = "terra.metadata.sensorposition"

// RoutingKeys are the events the extractor listens to
var RoutingKeys = []string{"*.metadata.added"}

// WithLogger sets the logger for the extractor
func WithLogger(logger *slog.Logger) func(e *Extractor) {
	return func(e *Extractor) {
		e.logger = logger.With(slog.String("extractor", Name))
	}
}

// WithStore keeps projected footprints in a ledger
func WithStore(store ledger.Store) func(e *Extractor) {
	return func(e *Extractor) {
		e.store = store
	}
}

// WithProjector replaces the default gantry reference
func WithProjector(p *position.Projector) func(e *Extractor) {
	return func(e *Extractor) {
		e.projector = p
	}
}

// WithResolver replaces the default metadata resolver
func WithResolver(r position.Resolver) func(e *Extractor) {
	return func(e *Extractor) {
		e.resolver = r
	}
}

// Extractor places gantry sensor captures on the map: it projects the pose in
// the metadata and posts the footprint as a geostreams datapoint.
type Extractor struct {
	cfg       extractor.Config
	resolver  position.Resolver
	projector *position.Projector
	store     ledger.Store
	logger    *slog.Logger
}

// New creates a new Extractor with the default gantry reference
func New(cfg extractor.Config, options ...func(e *Extractor)) (*Extractor, error) {
	cfg.SetDefaults()

	projector, err := position.NewProjector(position.DefaultReference)
	if err != nil {
		return nil, err
	}

	e := Extractor{
		cfg:       cfg,
		resolver:  position.Resolver{ZeroIsMissing: position.ZeroIsMissing},
		projector: projector,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&e)
	}

	return &e, nil
}

func (e *Extractor) Name() string {
	return Name
}

// Check processes metadata events whose document resolves to a complete pose
func (e *Extractor) Check(ctx context.Context, ev *extractor.Event) (extractor.CheckResult, error) {
	if !ev.Message.HasMetadata() {
		return extractor.Ignore, nil
	}
	if clowder.HasExtractorMetadata(ev.Message.Metadata, Name) {
		return extractor.Ignore, nil
	}

	if _, ok := e.resolve(ev.Message); !ok {
		e.logger.Info("metadata does not carry a complete sensor pose", slog.String("resource", ev.Resource.ID))
		return extractor.Ignore, nil
	}
	return extractor.Bypass, nil
}

// Process posts the footprint of the capture to the sensor stream
func (e *Extractor) Process(ctx context.Context, ev *extractor.Event) (*extractor.Result, error) {
	pose, ok := e.resolve(ev.Message)
	if !ok {
		return nil, position.ErrIncomplete
	}

	fp, err := e.projector.Project(pose)
	if err != nil {
		return nil, err
	}

	captured, err := pose.Time()
	if err != nil {
		return nil, fmt.Errorf("capture time %q: %w", pose.CaptureTime, err)
	}

	ds, err := ev.Dataset(ctx)
	if err != nil {
		return nil, extractor.Retryable(err)
	}
	sensor := ds.SensorName()

	streamID, err := e.stream(ctx, ev.Client, sensor, fp)
	if err != nil {
		return nil, extractor.Retryable(err)
	}

	files, err := ev.Client.DatasetFiles(ctx, ds.ID)
	if err != nil {
		return nil, extractor.Retryable(err)
	}
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
	}

	ts := position.FormatCaptureTime(captured)
	dp := clowder.Datapoint{
		StartTime: ts,
		EndTime:   ts,
		Type:      "Point",
		Geometry:  clowder.PointGeometry(fp.Centroid.Triple()...),
		Properties: map[string]any{
			"sources":  ev.Client.Host() + "datasets/" + ds.ID,
			"file_ids": strings.Join(fileIDs, ","),
			"centroid": clowder.PointGeometry(fp.Centroid.Lon, fp.Centroid.Lat),
			"fov":      clowder.PolygonGeometry(fp.Coordinates()),
		},
		StreamID: clowder.NumericID(streamID),
	}
	if _, err := ev.Client.CreateDatapoint(ctx, &dp); err != nil {
		return nil, extractor.Retryable(err)
	}

	if e.store != nil {
		rec := ledger.NewFootprintRecord(ds.ID, sensor, pose, fp)
		if ev.RunID != 0 {
			runID := ev.RunID
			rec.RunID = &runID
		}
		if _, err := e.store.InsertFootprint(ctx, rec); err != nil {
			e.logger.Error("storing footprint", slog.String("dataset", ds.ID), slog.String("error", err.Error()))
		}
	}

	md, err := extractor.BuildMetadata(ev.Client.Host(), Name, ds.ID, []byte(`{"datapoints_added": 1}`), bus.ResourceDataset)
	if err != nil {
		return nil, err
	}
	if err := ev.Client.UploadDatasetMetadata(ctx, ds.ID, md); err != nil {
		return nil, extractor.Retryable(err)
	}

	e.logger.Info("datapoint added",
		slog.String("sensor", sensor),
		slog.String("stream", streamID),
		slog.Float64("lat", fp.Centroid.Lat),
		slog.Float64("lon", fp.Centroid.Lon),
	)
	return &extractor.Result{FilesCreated: 1, Message: "datapoint added to stream " + streamID}, nil
}

// stream returns the stream of a sensor. Configured streams are used as is,
// unknown sensors get a stream created at their first position.
func (e *Extractor) stream(ctx context.Context, c *clowder.Client, sensor string, fp *position.Footprint) (string, error) {
	if id, ok := e.cfg.StreamID(sensor); ok {
		return id, nil
	}

	id, err := c.StreamByName(ctx, sensor)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, clowder.ErrNotFound) {
		return "", err
	}

	e.logger.Info("creating stream", slog.String("sensor", sensor))
	return c.CreateStream(ctx, &clowder.Stream{
		Name:     sensor,
		Geometry: clowder.PointGeometry(fp.Centroid.Triple()...),
		SensorID: clowder.NumericID(e.cfg.SensorID),
	})
}

// resolve reads the pose from the metadata carried by the message. The
// metadata is either a JSON-LD list or the measurement document itself.
func (e *Extractor) resolve(m *bus.Message) (*position.Pose, bool) {
	if content, ok := clowder.TerraMetadata(m.Metadata); ok {
		return e.resolver.Resolve(position.DocumentFromResult(content))
	}

	doc, err := position.ParseDocument(m.Metadata)
	if err != nil {
		return nil, false
	}
	return e.resolver.Resolve(doc)
}
