package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrReadOnly is returned by write operations on a store opened with ReadOnly
var ErrReadOnly = errors.New("ledger is read-only")

// Option configures a SqliteStore
type Option func(*SqliteStore)

// ReadOnly opens the store for reading only. Migrations are not applied and
// the database file must already exist.
func ReadOnly() Option {
	return func(s *SqliteStore) {
		s.readOnly = true
	}
}

// QueryOption narrows down a footprint query
type QueryOption func(*footprintQuery)

type footprintQuery struct {
	startTime *time.Time
	endTime   *time.Time
	limit     int
}

// WithStartTime excludes footprints captured before t
func WithStartTime(t time.Time) QueryOption {
	return func(q *footprintQuery) {
		q.startTime = &t
	}
}

// WithEndTime excludes footprints captured after t
func WithEndTime(t time.Time) QueryOption {
	return func(q *footprintQuery) {
		q.endTime = &t
	}
}

// WithTimeRange is WithStartTime and WithEndTime combined
func WithTimeRange(start, end time.Time) QueryOption {
	return func(q *footprintQuery) {
		q.startTime = &start
		q.endTime = &end
	}
}

// WithLimit caps the number of footprints returned
func WithLimit(n int) QueryOption {
	return func(q *footprintQuery) {
		q.limit = n
	}
}

// SqliteStore is a Store backed by a local SQLite database
type SqliteStore struct {
	dbPath   string
	readOnly bool

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore returns a store for the database at dbPath. Connections are
// opened, and the schema migrated, on first use.
func NewSqliteStore(dbPath string, opts ...Option) *SqliteStore {
	s := &SqliteStore{dbPath: dbPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SqliteStore) getWriteDB(ctx context.Context) (*sql.DB, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}

	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if _, err = Migrate(ctx, db); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB(ctx context.Context) (*sql.DB, error) {
	// the read connection cannot create the file, make sure the schema exists first
	if !s.readOnly {
		if _, err := s.getWriteDB(ctx); err != nil {
			return nil, err
		}
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) StartRun(ctx context.Context, extractor, resourceID string) (runID int64, err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, extractor, resourceID, time.Now().UTC(), string(StatusRunning))
	if err != nil {
		err = fmt.Errorf("inserting run: %w", err)
		return
	}

	runID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting run ID: %w", err)
	}
	return
}

func (s *SqliteStore) FinishRun(ctx context.Context, runID int64, status RunStatus, created int, bytes int64, msg string) (err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var message sql.NullString
	if msg != "" {
		message = sql.NullString{String: msg, Valid: true}
	}

	result, err := db.ExecContext(ctx, finishRunSQL, time.Now().UTC(), string(status), created, bytes, message, runID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func (s *SqliteStore) Completed(ctx context.Context, extractor, resourceID string) (done bool, err error) {
	db, err := s.getReadDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	if err = db.QueryRowContext(ctx, selectCompletedSQL, extractor, resourceID, string(StatusSucceeded)).Scan(&done); err != nil {
		err = fmt.Errorf("querying completed runs: %w", err)
	}
	return
}

func (s *SqliteStore) RecentRuns(ctx context.Context, limit int) (runs []*Run, err error) {
	db, err := s.getReadDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRecentRunsSQL, limit)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var d runData
		if err = rows.Scan(
			&d.ID,
			&d.Extractor,
			&d.ResourceID,
			&d.StartedAt,
			&d.FinishedAt,
			&d.Status,
			&d.FilesCreated,
			&d.BytesCreated,
			&d.Message,
		); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		runs = append(runs, d.toRun())
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) InsertFootprint(ctx context.Context, rec *FootprintRecord) (id int64, err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("beginning transaction: %w", err)
		return
	}
	defer rollbackWithError(tx, &err)

	var capturedAt sql.NullTime
	if rec.CapturedAt != nil {
		capturedAt = sql.NullTime{Time: *rec.CapturedAt, Valid: true}
	}
	var runID sql.NullInt64
	if rec.RunID != nil {
		runID = sql.NullInt64{Int64: *rec.RunID, Valid: true}
	}

	result, err := tx.ExecContext(
		ctx,
		insertFootprintSQL,
		runID,
		rec.DatasetID,
		rec.Sensor,
		rec.CaptureTime,
		capturedAt,
		rec.Centroid.Lat,
		rec.Centroid.Lon,
		rec.NW.Lat,
		rec.NW.Lon,
		rec.SE.Lat,
		rec.SE.Lon,
		rec.Position.Easting,
		rec.Position.Northing,
		rec.Position.ZoneNumber,
		string(rec.Position.ZoneLetter),
		rec.FOVNorth,
		rec.FOVSouth,
		rec.FOVWest,
		rec.FOVEast,
	)
	if err != nil {
		err = fmt.Errorf("inserting footprint: %w", err)
		return
	}

	if id, err = result.LastInsertId(); err != nil {
		err = fmt.Errorf("getting footprint ID: %w", err)
		return
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
	}
	return
}

func (s *SqliteStore) Footprints(ctx context.Context, sensor string, opts ...QueryOption) (records []*FootprintRecord, err error) {
	var q footprintQuery
	for _, opt := range opts {
		opt(&q)
	}

	var sb strings.Builder
	args := []any{sensor}

	sb.WriteString(selectFootprintsSQL)
	if q.startTime != nil {
		sb.WriteString(" AND captured_at >= ?")
		args = append(args, q.startTime.UTC())
	}
	if q.endTime != nil {
		sb.WriteString(" AND captured_at <= ?")
		args = append(args, q.endTime.UTC())
	}
	sb.WriteString(" ORDER BY captured_at, id")
	if q.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.limit)
	}

	db, err := s.getReadDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		err = fmt.Errorf("querying footprints: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			rec        FootprintRecord
			runID      sql.NullInt64
			capturedAt sql.NullTime
			letter     string
		)
		if err = rows.Scan(
			&rec.ID,
			&runID,
			&rec.DatasetID,
			&rec.Sensor,
			&rec.CaptureTime,
			&capturedAt,
			&rec.Centroid.Lat,
			&rec.Centroid.Lon,
			&rec.NW.Lat,
			&rec.NW.Lon,
			&rec.SE.Lat,
			&rec.SE.Lon,
			&rec.Position.Easting,
			&rec.Position.Northing,
			&rec.Position.ZoneNumber,
			&letter,
			&rec.FOVNorth,
			&rec.FOVSouth,
			&rec.FOVWest,
			&rec.FOVEast,
		); err != nil {
			err = fmt.Errorf("scanning footprint: %w", err)
			return
		}
		if runID.Valid {
			rec.RunID = &runID.Int64
		}
		if capturedAt.Valid {
			rec.CapturedAt = &capturedAt.Time
		}
		if letter != "" {
			rec.Position.ZoneLetter = letter[0]
		}
		records = append(records, &rec)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
