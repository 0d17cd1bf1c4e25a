package ledger

import (
	"context"
)

// Store records extractor runs and the sensor footprints they produced. It is
// local bookkeeping only; the platform remains the system of record.
type Store interface {
	// StartRun records the start of an extractor run against a resource.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - extractor: Registered extractor name (e.g., "terra.metadata.sensorposition")
	//   - resourceID: Platform identifier of the dataset or file being processed
	//
	// Returns:
	//   - runID: Unique identifier of the run, to be passed to FinishRun
	//   - error: If the run cannot be recorded or context is cancelled
	StartRun(ctx context.Context, extractor, resourceID string) (runID int64, err error)

	// FinishRun closes a run with its outcome and the amount of output it created.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - runID: Identifier returned by StartRun
	//   - status: Final status, one of StatusSucceeded, StatusSkipped or StatusFailed
	//   - created: Number of files or records created
	//   - bytes: Number of bytes written
	//   - msg: Optional message, typically the error text of a failed run
	//
	// Returns:
	//   - error: If the update fails or context is cancelled
	FinishRun(ctx context.Context, runID int64, status RunStatus, created int, bytes int64, msg string) error

	// Completed reports whether an extractor already succeeded on a resource.
	Completed(ctx context.Context, extractor, resourceID string) (bool, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*Run, error)

	// InsertFootprint stores a projected footprint and returns its identifier.
	InsertFootprint(ctx context.Context, rec *FootprintRecord) (int64, error)

	// Footprints returns the stored footprints of a sensor, ordered by capture
	// time. Options narrow the result down (WithTimeRange, WithLimit).
	Footprints(ctx context.Context, sensor string, opts ...QueryOption) ([]*FootprintRecord, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
