package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
	"github.com/roman-kulish/gantry-extractors/internal/ledger"
)

// ErrNothingToDo is returned by Process when the resource turned out to need
// no work. The run is recorded as skipped and the message is acknowledged.
var ErrNothingToDo = errors.New("nothing to do")

// WithLogger sets the logger for the runner
func WithLogger(logger *slog.Logger) func(r *Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("extractor", r.ext.Name()))
	}
}

// WithStore records runs in a ledger
func WithStore(store ledger.Store) func(r *Runner) {
	return func(r *Runner) {
		r.store = store
	}
}

// WithClientOptions sets the options of platform clients created per message
func WithClientOptions(options ...func(c *clowder.Client)) func(r *Runner) {
	return func(r *Runner) {
		r.clientOptions = append(r.clientOptions, options...)
	}
}

// Runner drives an Extractor from bus messages
type Runner struct {
	ext           Extractor
	cfg           Config
	store         ledger.Store
	clientOptions []func(c *clowder.Client)
	logger        *slog.Logger
}

// NewRunner creates a new Runner with a discard logger and no ledger
func NewRunner(ext Extractor, cfg Config, options ...func(r *Runner)) (*Runner, error) {
	cfg.SetDefaults()
	if cfg.Name == "" {
		cfg.Name = ext.Name()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := Runner{
		ext:    ext,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Handle processes a single message
func (r *Runner) Handle(ctx context.Context, m *bus.Message) error {
	ev := NewEvent(m, r.client(m))

	logger := r.logger.With(
		slog.String("resource", ev.Resource.ID),
		slog.String("resourceType", ev.Resource.Type),
	)

	if r.cfg.SkipCompleted && r.store != nil {
		done, err := r.store.Completed(ctx, r.cfg.Name, ev.Resource.ID)
		if err != nil {
			return fmt.Errorf("checking ledger: %w", err)
		}
		if done {
			logger.Info("resource already processed")
			return nil
		}
	}

	check, err := r.ext.Check(ctx, ev)
	if err != nil {
		return fmt.Errorf("checking message: %w", err)
	}

	if check == Ignore {
		logger.Info("ignoring message")
		return nil
	}

	if check == Download {
		cleanup, err := r.fetch(ctx, ev)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			return err
		}
	}

	return r.process(ctx, logger, ev)
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, ev *Event) error {
	var runID int64
	if r.store != nil {
		id, err := r.store.StartRun(ctx, r.cfg.Name, ev.Resource.ID)
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		runID = id
		ev.RunID = id
	}

	logger.Info("processing started", slog.Any("paths", ev.Resource.LocalPaths))
	started := time.Now()

	res, err := r.ext.Process(ctx, ev)
	if res == nil {
		res = &Result{}
	}

	status := ledger.StatusSucceeded
	msg := res.Message
	switch {
	case errors.Is(err, ErrNothingToDo):
		status = ledger.StatusSkipped
		msg = err.Error()
		err = nil
	case err != nil:
		status = ledger.StatusFailed
		msg = err.Error()
	}

	if r.store != nil {
		if fErr := r.store.FinishRun(ctx, runID, status, res.FilesCreated, res.BytesCreated, msg); fErr != nil {
			logger.Error("recording run outcome", slog.String("error", fErr.Error()))
		}
	}

	if err != nil {
		logger.Error("processing failed", slog.String("error", err.Error()))
		return err
	}

	logger.Info("processing finished",
		slog.String("status", string(status)),
		slog.String("files", humanize.Comma(int64(res.FilesCreated))),
		slog.String("bytes", humanize.Bytes(uint64(res.BytesCreated))),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

// client returns a platform client for the host and key of a message
func (r *Runner) client(m *bus.Message) *clowder.Client {
	host, key := m.Host, m.SecretKey
	if host == "" {
		host = r.cfg.Host
	}
	if key == "" {
		key = r.cfg.Key
	}

	options := append([]func(c *clowder.Client){}, r.clientOptions...)
	options = append(options, clowder.WithLogger(r.logger))
	return clowder.NewClient(host, key, options...)
}

// fetch makes the resource files available locally. Files on a mounted path
// are used in place, anything else is downloaded into a temporary directory.
func (r *Runner) fetch(ctx context.Context, ev *Event) (cleanup func(), err error) {
	var files []clowder.File
	switch ev.Resource.Type {
	case bus.ResourceFile:
		info, err := ev.Client.FileInfo(ctx, ev.Resource.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching file info: %w", err)
		}
		if info.ID == "" {
			info.ID = ev.Resource.ID
		}
		if info.Filename == "" {
			info.Filename = ev.Message.Filename
		}
		files = []clowder.File{*info}
	default:
		files, err = ev.Client.DatasetFiles(ctx, ev.Resource.ID)
		if err != nil {
			return nil, fmt.Errorf("listing dataset files: %w", err)
		}
	}

	var tmpDir string
	for _, f := range files {
		if f.Filepath != "" {
			if local, ok := r.cfg.RemapMountPath(f.Filepath); ok {
				if _, statErr := os.Stat(local); statErr == nil {
					ev.Resource.LocalPaths = append(ev.Resource.LocalPaths, local)
					continue
				}
			}
		}

		if tmpDir == "" {
			tmpDir, err = os.MkdirTemp(r.cfg.TempDir, r.cfg.Name+"-")
			if err != nil {
				return nil, fmt.Errorf("creating download directory: %w", err)
			}
			cleanup = func() {
				if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
					r.logger.Warn("removing download directory", slog.String("error", rmErr.Error()))
				}
			}
		}

		path, err := ev.Client.DownloadFile(ctx, f.ID, f.Filename, tmpDir)
		if err != nil {
			return cleanup, fmt.Errorf("downloading %s: %w", f.ID, err)
		}
		ev.Resource.LocalPaths = append(ev.Resource.LocalPaths, path)
	}
	return cleanup, nil
}
