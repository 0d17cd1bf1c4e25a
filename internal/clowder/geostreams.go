package clowder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// NumericID is a geostreams identifier. It is sent as a JSON number when it
// holds an integer, as the API stores numeric sensor and stream IDs.
type NumericID string

func (id NumericID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Geometry is a GeoJSON geometry. Coordinates keep the altitude component,
// which the geostreams API stores as given.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// PointGeometry returns a Point with the given coordinates, in (lon, lat[, alt]) order
func PointGeometry(coords ...float64) Geometry {
	return Geometry{Type: "Point", Coordinates: coords}
}

// PolygonGeometry returns a Polygon with a single ring
func PolygonGeometry(ring [][]float64) Geometry {
	return Geometry{Type: "Polygon", Coordinates: [][][]float64{ring}}
}

// Stream is a geostreams time series, one per sensor
type Stream struct {
	ID         string         `json:"-"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
	SensorID   NumericID      `json:"sensor_id"`
}

// Datapoint is a single observation posted to a stream
type Datapoint struct {
	StartTime  string         `json:"start_time"`
	EndTime    string         `json:"end_time"`
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
	StreamID   NumericID      `json:"stream_id"`
}

// StreamByName looks a stream up by its exact name. It returns ErrNotFound when
// no stream matches.
func (c *Client) StreamByName(ctx context.Context, name string) (string, error) {
	data, err := c.getJSON(ctx, "api/geostreams/streams", url.Values{"stream_name": {name}})
	if err != nil {
		return "", fmt.Errorf("searching stream %q: %w", name, err)
	}

	var id string
	gjson.ParseBytes(data).ForEach(func(_, s gjson.Result) bool {
		if s.Get("name").String() == name {
			id = s.Get("id").String()
			return false
		}
		return true
	})
	if id == "" {
		return "", fmt.Errorf("stream %q: %w", name, ErrNotFound)
	}
	return id, nil
}

// CreateStream creates a stream and returns its ID
func (c *Client) CreateStream(ctx context.Context, s *Stream) (string, error) {
	if s.Properties == nil {
		s.Properties = map[string]any{}
	}
	if s.Type == "" {
		s.Type = "point"
	}

	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling stream: %w", err)
	}

	data, err := c.sendJSON(ctx, http.MethodPost, "api/geostreams/streams", nil, body)
	if err != nil {
		return "", fmt.Errorf("creating stream %q: %w", s.Name, err)
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return "", fmt.Errorf("creating stream %q: response carries no id", s.Name)
	}
	s.ID = id.String()
	return s.ID, nil
}

// CreateDatapoint posts a datapoint and returns its ID when the platform
// reports one.
func (c *Client) CreateDatapoint(ctx context.Context, dp *Datapoint) (string, error) {
	if dp.Type == "" {
		dp.Type = dp.Geometry.Type
	}

	body, err := json.Marshal(dp)
	if err != nil {
		return "", fmt.Errorf("marshaling datapoint: %w", err)
	}

	data, err := c.sendJSON(ctx, http.MethodPost, "api/geostreams/datapoints", nil, body)
	if err != nil {
		return "", fmt.Errorf("creating datapoint in stream %s: %w", dp.StreamID, err)
	}
	return gjson.GetBytes(data, "id").String(), nil
}
