package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/gantry-extractors/internal/ledger"
)

const (
	defaultLimit = 50
	maxLimit     = 1000

	queryTimeout = 5 * time.Second
)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server exposes extractor health and the run ledger over HTTP
type Server struct {
	store  ledger.Store
	logger *slog.Logger
}

// NewServer creates a new Server with a discard logger
func NewServer(store ledger.Store, options ...func(s *Server)) *Server {
	s := Server{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Routes wires the endpoints
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/runs", s.handleRuns)
	r.Get("/footprints/{sensor}", s.handleFootprints)

	return r
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// handleRuns returns the most recent runs, newest first
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	runs, err := s.store.RecentRuns(ctx, limit)
	if err != nil {
		s.logger.Error("listing runs", slog.String("error", err.Error()))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*ledger.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runs)
}

// handleFootprints returns the stored footprints of a sensor as a GeoJSON
// feature collection of field of view polygons.
func (s *Server) handleFootprints(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	sensor := chi.URLParam(r, "sensor")
	records, err := s.store.Footprints(ctx, sensor, ledger.WithLimit(limit))
	if err != nil {
		s.logger.Error("listing footprints", slog.String("sensor", sensor), slog.String("error", err.Error()))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		fc.Append(footprintFeature(rec))
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, "encoding footprints", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func footprintFeature(rec *ledger.FootprintRecord) *geojson.Feature {
	f := rec.Footprint().Feature()
	f.ID = rec.ID
	f.Properties["dataset_id"] = rec.DatasetID
	f.Properties["sensor"] = rec.Sensor
	f.Properties["capture_time"] = rec.CaptureTime
	return f
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
