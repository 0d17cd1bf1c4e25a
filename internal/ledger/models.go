package ledger

import (
	"database/sql"
	"time"

	"github.com/roman-kulish/gantry-extractors/internal/position"
	"github.com/roman-kulish/gantry-extractors/internal/utm"
)

// RunStatus is the outcome of an extractor run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusSkipped   RunStatus = "skipped"
	StatusFailed    RunStatus = "failed"
)

// Run is a single extractor invocation against a platform resource
type Run struct {
	ID           int64      `json:"id"`
	Extractor    string     `json:"extractor"`
	ResourceID   string     `json:"resource_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       RunStatus  `json:"status"`
	FilesCreated int        `json:"files_created"`
	BytesCreated int64      `json:"bytes_created"`
	Message      string     `json:"message,omitempty"`
}

// FootprintRecord is a projected sensor footprint as stored in the ledger
type FootprintRecord struct {
	ID          int64
	RunID       *int64
	DatasetID   string
	Sensor      string
	CaptureTime string
	CapturedAt  *time.Time

	Centroid position.LatLon
	NW       position.LatLon
	SE       position.LatLon

	// UTM position of the sensor and its field of view edges, meters
	Position utm.Coordinate
	FOVNorth float64
	FOVSouth float64
	FOVWest  float64
	FOVEast  float64
}

// NewFootprintRecord flattens a projected footprint for storage. The capture
// time is parsed when possible, the raw value is always kept.
func NewFootprintRecord(datasetID, sensor string, pose *position.Pose, fp *position.Footprint) *FootprintRecord {
	rec := &FootprintRecord{
		DatasetID:   datasetID,
		Sensor:      sensor,
		CaptureTime: position.UnknownTime,
		Centroid:    fp.Centroid,
		NW:          fp.NW,
		SE:          fp.SE,
		Position:    fp.Sensor,
		FOVNorth:    fp.FOVNorth,
		FOVSouth:    fp.FOVSouth,
		FOVWest:     fp.FOVWest,
		FOVEast:     fp.FOVEast,
	}
	if pose != nil {
		rec.CaptureTime = pose.CaptureTime
		if t, err := pose.Time(); err == nil {
			t = t.UTC()
			rec.CapturedAt = &t
		}
	}
	return rec
}

// Footprint rebuilds the stored field of view. The NE and SW corners are
// taken from the stored NW and SE corners.
func (r *FootprintRecord) Footprint() *position.Footprint {
	return &position.Footprint{
		Centroid: r.Centroid,
		NW:       r.NW,
		NE:       position.LatLon{Lat: r.NW.Lat, Lon: r.SE.Lon},
		SE:       r.SE,
		SW:       position.LatLon{Lat: r.SE.Lat, Lon: r.NW.Lon},
		Sensor:   r.Position,
		FOVNorth: r.FOVNorth,
		FOVSouth: r.FOVSouth,
		FOVWest:  r.FOVWest,
		FOVEast:  r.FOVEast,
	}
}

type runData struct {
	ID           int64
	Extractor    string
	ResourceID   string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Status       string
	FilesCreated int
	BytesCreated int64
	Message      sql.NullString
}

func (d *runData) toRun() *Run {
	r := &Run{
		ID:           d.ID,
		Extractor:    d.Extractor,
		ResourceID:   d.ResourceID,
		StartedAt:    d.StartedAt,
		Status:       RunStatus(d.Status),
		FilesCreated: d.FilesCreated,
		BytesCreated: d.BytesCreated,
		Message:      d.Message.String,
	}
	if d.FinishedAt.Valid {
		t := d.FinishedAt.Time
		r.FinishedAt = &t
	}
	return r
}
