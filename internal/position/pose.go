package position

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTime is returned when a pose carries no capture time
var ErrUnknownTime = errors.New("capture time unknown")

// captureLocation is the offset appended to LemnaTec timestamps, which are
// recorded without a zone.
var captureLocation = time.FixedZone("-0600", -6*60*60)

var captureLayouts = []struct {
	layout string
	zoned  bool
}{
	{"01/02/2006 15:04:05", false},
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
}

// Pose holds the fields needed to place a sensor: gantry position and the
// sensor offset within the camera box (meters, gantry frame), and the field of
// view extents at the working distance (meters).
type Pose struct {
	GantryX       Value
	GantryY       Value
	CameraOffsetX Value
	CameraOffsetY Value
	FOVX          Value
	FOVY          Value

	// CaptureTime is the raw timestamp from the metadata, or UnknownTime
	CaptureTime string
}

// NewPose builds a Pose from plain numbers
func NewPose(gantryX, gantryY, camX, camY, fovX, fovY float64) *Pose {
	return &Pose{
		GantryX:       Number(gantryX),
		GantryY:       Number(gantryY),
		CameraOffsetX: Number(camX),
		CameraOffsetY: Number(camY),
		FOVX:          Number(fovX),
		FOVY:          Number(fovY),
		CaptureTime:   UnknownTime,
	}
}

// Time parses the capture time
func (p *Pose) Time() (time.Time, error) {
	return ParseCaptureTime(p.CaptureTime)
}

// ParseCaptureTime parses the timestamp formats seen in gantry metadata.
// Timestamps without a zone are taken to be at -06:00.
func ParseCaptureTime(s string) (time.Time, error) {
	if s == "" || s == UnknownTime {
		return time.Time{}, ErrUnknownTime
	}

	for _, l := range captureLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, captureLocation)
		}
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized capture time format: %q", s)
}

// FormatCaptureTime formats a capture time the way the geostreams API expects
func FormatCaptureTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}
