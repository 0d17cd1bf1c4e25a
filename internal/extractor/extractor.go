package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
)

// CheckResult tells the runner what to do with a message
type CheckResult int

const (
	// Ignore skips the message without processing it
	Ignore CheckResult = iota

	// Download fetches the resource file before processing
	Download

	// Bypass processes the message without fetching the resource
	Bypass
)

func (r CheckResult) String() string {
	switch r {
	case Ignore:
		return "ignore"
	case Download:
		return "download"
	case Bypass:
		return "bypass"
	default:
		return fmt.Sprintf("CheckResult(%d)", int(r))
	}
}

// Extractor reacts to platform events for one kind of resource
type Extractor interface {
	// Name is the registered extractor name, also used as the queue name
	Name() string

	// Check decides whether and how an event is processed. It should be cheap.
	Check(ctx context.Context, ev *Event) (CheckResult, error)

	// Process does the work and reports what it created
	Process(ctx context.Context, ev *Event) (*Result, error)
}

// Result summarizes what a Process call created
type Result struct {
	FilesCreated int
	BytesCreated int64
	Message      string
}

// Add accumulates one created output of the given size
func (r *Result) Add(bytes int64) {
	r.FilesCreated++
	r.BytesCreated += bytes
}

// Resource is the platform object an event refers to
type Resource struct {
	ID       string
	Type     string
	Name     string
	ParentID string

	// LocalPaths holds the resource file once it is available locally
	LocalPaths []string
}

// Event is a message together with a platform client scoped to its host and key
type Event struct {
	Message  *bus.Message
	Resource Resource
	Client   *clowder.Client

	// RunID is the ledger run of the current Process call, zero without a ledger
	RunID int64

	datasetOnce sync.Once
	dataset     *clowder.Dataset
	datasetErr  error
}

// NewEvent builds an event for a message
func NewEvent(m *bus.Message, c *clowder.Client) *Event {
	return &Event{
		Message: m,
		Resource: Resource{
			ID:       m.ResourceID(),
			Type:     m.ResourceType,
			Name:     m.Filename,
			ParentID: m.ParentDatasetID(),
		},
		Client: c,
	}
}

// Dataset returns the dataset the resource belongs to. It is fetched once.
func (ev *Event) Dataset(ctx context.Context) (*clowder.Dataset, error) {
	ev.datasetOnce.Do(func() {
		id := ev.Resource.ParentID
		if id == "" {
			ev.datasetErr = fmt.Errorf("resource %s has no parent dataset", ev.Resource.ID)
			return
		}
		ev.dataset, ev.datasetErr = ev.Client.DatasetInfo(ctx, id)
	})
	return ev.dataset, ev.datasetErr
}

// DatasetName is the parsed name of a gantry dataset, e.g.
// "stereoTop - 2016-08-16__13-50-49-000".
type DatasetName struct {
	Sensor    string
	Timestamp string
	Date      string
}

// ParseDatasetName splits a dataset name into its sensor and timestamp parts
func ParseDatasetName(name string) (DatasetName, error) {
	sensor, timestamp, ok := strings.Cut(name, " - ")
	sensor, timestamp = strings.TrimSpace(sensor), strings.TrimSpace(timestamp)
	if !ok || sensor == "" || timestamp == "" {
		return DatasetName{}, fmt.Errorf("unexpected dataset name %q", name)
	}

	date, _, _ := strings.Cut(timestamp, "__")
	return DatasetName{Sensor: sensor, Timestamp: timestamp, Date: date}, nil
}

func (n DatasetName) String() string {
	return n.Sensor + " - " + n.Timestamp
}
