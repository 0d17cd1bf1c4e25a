package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/roman-kulish/gantry-extractors/internal/ledger"
	"github.com/roman-kulish/gantry-extractors/internal/utm"
)

// maxImageSide caps the rendered map, in pixels
const maxImageSide = 16384

var ErrNoFootprints = errors.New("no footprints to render")

// CoverageMap holds the footprints of one sensor in UTM meters, in capture order
type CoverageMap struct {
	Sensor     string
	ZoneNumber int
	ZoneLetter byte

	Footprints []orb.Bound
	Bound      orb.Bound

	// Area is the sum of the footprint areas in square meters, overlaps included
	Area float64

	CaptureStart *time.Time
	CaptureEnd   *time.Time

	// Skipped counts footprints outside the zone of the first one
	Skipped int

	Width  int // pixels
	Height int // pixels
	Scale  float64
}

// NewCoverageMap places the records in the UTM zone of the first record and
// sizes the map for scale pixels per meter.
func NewCoverageMap(sensor string, records []*ledger.FootprintRecord, scale float64) (*CoverageMap, error) {
	if len(records) == 0 {
		return nil, ErrNoFootprints
	}

	zone := records[0].Position
	m := CoverageMap{
		Sensor:     sensor,
		ZoneNumber: zone.ZoneNumber,
		ZoneLetter: zone.ZoneLetter,
		Scale:      scale,
	}

	for _, rec := range records {
		b, ok := footprintBound(rec, zone)
		if !ok {
			m.Skipped++
			continue
		}

		if len(m.Footprints) == 0 {
			m.Bound = b
		} else {
			m.Bound = m.Bound.Union(b)
		}
		m.Footprints = append(m.Footprints, b)
		m.Area += b.Width() * b.Height()

		if t := rec.CapturedAt; t != nil {
			if m.CaptureStart == nil || t.Before(*m.CaptureStart) {
				m.CaptureStart = t
			}
			if m.CaptureEnd == nil || t.After(*m.CaptureEnd) {
				m.CaptureEnd = t
			}
		}
	}

	if len(m.Footprints) == 0 {
		return nil, ErrNoFootprints
	}

	m.Width = int(math.Ceil(m.Bound.Width()*scale)) + 1
	m.Height = int(math.Ceil(m.Bound.Height()*scale)) + 1
	if m.Width > maxImageSide || m.Height > maxImageSide {
		return nil, fmt.Errorf("map of %dx%d pixels is too large, lower the scale", m.Width, m.Height)
	}

	return &m, nil
}

// Pixel returns the offset of a UTM point from the top left corner of the map
func (m *CoverageMap) Pixel(p orb.Point) (x, y int) {
	x = int(math.Round((p.X() - m.Bound.Min.X()) * m.Scale))
	y = int(math.Round((m.Bound.Max.Y() - p.Y()) * m.Scale))
	return x, y
}

// footprintBound returns the field of view of a record in the given zone.
// Records stored in another zone are re-projected from their corners.
func footprintBound(rec *ledger.FootprintRecord, zone utm.Coordinate) (orb.Bound, bool) {
	if rec.Position.ZoneNumber == zone.ZoneNumber && rec.Position.ZoneLetter == zone.ZoneLetter {
		return orb.Bound{
			Min: orb.Point{rec.FOVWest, rec.FOVSouth},
			Max: orb.Point{rec.FOVEast, rec.FOVNorth},
		}, true
	}

	nw, err := utm.ToUTM(rec.NW.Lat, rec.NW.Lon)
	if err != nil || nw.ZoneNumber != zone.ZoneNumber {
		return orb.Bound{}, false
	}
	se, err := utm.ToUTM(rec.SE.Lat, rec.SE.Lon)
	if err != nil || se.ZoneNumber != zone.ZoneNumber {
		return orb.Bound{}, false
	}

	return orb.MultiPoint{{nw.Easting, nw.Northing}, {se.Easting, se.Northing}}.Bound(), true
}
