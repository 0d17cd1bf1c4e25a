package position

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roman-kulish/gantry-extractors/internal/utm"
)

var (
	// ErrIncomplete is returned when projecting a pose that was not resolved
	ErrIncomplete = errors.New("incomplete pose")

	// ErrNonNumeric is returned when a pose field holds a value that is not a number
	ErrNonNumeric = errors.New("non-numeric pose field")
)

// Reference anchors the gantry frame to the globe. The gantry frame has +x
// pointing north and +y pointing west.
//
//	         N(x)
//	         ^
//	         |
//	W(y) <---SE
type Reference struct {
	Latitude  float64 // latitude of the frame's south-east corner
	Longitude float64 // longitude of the frame's south-east corner
	OffsetX   float64 // gantry x of the south-east corner, meters
	OffsetY   float64 // gantry y of the south-east corner, meters
}

// DefaultReference is the south-east corner of the field scanner frame at
// Maricopa, AZ. The north-west corner sits at gantry (207.3, 22.135).
var DefaultReference = Reference{
	Latitude:  33.0745,
	Longitude: -111.97475,
	OffsetX:   3.8,
	OffsetY:   0.0,
}

// Projector converts poses in the gantry frame to geographic footprints
type Projector struct {
	ref    Reference
	origin utm.Coordinate
}

// NewProjector projects the reference corner once; every footprint is then
// computed in that corner's UTM zone.
func NewProjector(ref Reference) (*Projector, error) {
	origin, err := utm.ToUTM(ref.Latitude, ref.Longitude)
	if err != nil {
		return nil, fmt.Errorf("projecting reference point: %w", err)
	}
	return &Projector{ref: ref, origin: origin}, nil
}

var defaultProjector = sync.OnceValues(func() (*Projector, error) {
	return NewProjector(DefaultReference)
})

// Project places a pose with the DefaultReference
func Project(pose *Pose) (*Footprint, error) {
	p, err := defaultProjector()
	if err != nil {
		return nil, err
	}
	return p.Project(pose)
}

// Origin returns the projected reference corner
func (p *Projector) Origin() utm.Coordinate {
	return p.origin
}

// Project computes the sensor position and its field of view footprint. The
// field of view is assumed to be centred on the sensor.
func (p *Projector) Project(pose *Pose) (*Footprint, error) {
	if pose == nil {
		return nil, ErrIncomplete
	}

	fields := []struct {
		name string
		v    Value
	}{
		{"gantry_x", pose.GantryX},
		{"gantry_y", pose.GantryY},
		{"camera_offset_x", pose.CameraOffsetX},
		{"camera_offset_y", pose.CameraOffsetY},
		{"fov_x", pose.FOVX},
		{"fov_y", pose.FOVY},
	}
	nums := make([]float64, len(fields))
	for i, f := range fields {
		n, ok := f.v.Float()
		if !ok {
			return nil, fmt.Errorf("%w: %s = %q", ErrNonNumeric, f.name, f.v.String())
		}
		nums[i] = n
	}
	gantryX, gantryY, camX, camY, fovX, fovY := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]

	gantry := p.origin.Offset(-(gantryY - p.ref.OffsetY), gantryX-p.ref.OffsetX)
	sensor := gantry.Offset(-camY, camX)

	nw := sensor.Offset(-fovY/2, fovX/2)
	se := sensor.Offset(fovY/2, -fovX/2)
	ne := utm.Coordinate{Easting: se.Easting, Northing: nw.Northing, ZoneNumber: sensor.ZoneNumber, ZoneLetter: sensor.ZoneLetter}
	sw := utm.Coordinate{Easting: nw.Easting, Northing: se.Northing, ZoneNumber: sensor.ZoneNumber, ZoneLetter: sensor.ZoneLetter}

	fp := Footprint{
		Sensor:   sensor,
		FOVNorth: nw.Northing,
		FOVSouth: se.Northing,
		FOVWest:  nw.Easting,
		FOVEast:  se.Easting,
	}

	points := []struct {
		dst   *LatLon
		coord utm.Coordinate
		name  string
	}{
		{&fp.Centroid, sensor, "sensor"},
		{&fp.NW, nw, "north-west corner"},
		{&fp.NE, ne, "north-east corner"},
		{&fp.SE, se, "south-east corner"},
		{&fp.SW, sw, "south-west corner"},
	}
	for _, pt := range points {
		lat, lon, err := utm.FromUTM(pt.coord)
		if err != nil {
			return nil, fmt.Errorf("unprojecting %s: %w", pt.name, err)
		}
		*pt.dst = LatLon{Lat: lat, Lon: lon}
	}

	return &fp, nil
}
