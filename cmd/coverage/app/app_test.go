package app

import (
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gantry-extractors/internal/ledger"
	"github.com/roman-kulish/gantry-extractors/internal/position"
	"github.com/roman-kulish/gantry-extractors/internal/utm"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func footprint(t *testing.T, datasetID string, gantryX float64, captureTime string) *ledger.FootprintRecord {
	t.Helper()

	pose := position.NewPose(gantryX, 10, 0.5, 0.2, 2.0, 1.5)
	pose.CaptureTime = captureTime
	fp, err := position.Project(pose)
	require.NoError(t, err)

	return ledger.NewFootprintRecord(datasetID, "stereoTop", pose, fp)
}

func seedLedger(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store := ledger.NewSqliteStore(path)
	defer store.Close()

	for i, rec := range []*ledger.FootprintRecord{
		footprint(t, "ds-1", 100, "08/16/2016 13:50:49"),
		footprint(t, "ds-2", 105, "08/16/2016 13:55:49"),
		footprint(t, "ds-3", 110, "08/16/2016 14:00:49"),
	} {
		_, err := store.InsertFootprint(context.Background(), rec)
		require.NoError(t, err, i)
	}
	return path
}

func TestNewCoverageMap(t *testing.T) {
	// Mock
	records := []*ledger.FootprintRecord{
		footprint(t, "ds-1", 100, "08/16/2016 13:50:49"),
		footprint(t, "ds-2", 105, "08/16/2016 13:55:49"),
	}

	// Tested code
	m, err := NewCoverageMap("stereoTop", records, 10)

	// Asserts
	require.NoError(t, err)
	require.Len(t, m.Footprints, 2)
	assert.Equal(t, records[0].Position.ZoneNumber, m.ZoneNumber)
	assert.Zero(t, m.Skipped)

	// each footprint is 2.0 x 1.5 meters
	assert.InDelta(t, 2*2.0*1.5, m.Area, 1e-3)
	for _, fp := range m.Footprints {
		assert.True(t, m.Bound.Contains(fp.Center()))
	}
	require.NotNil(t, m.CaptureStart)
	require.NotNil(t, m.CaptureEnd)
	assert.Equal(t, 5*time.Minute, m.CaptureEnd.Sub(*m.CaptureStart))

	x, y := m.Pixel(m.Bound.LeftTop())
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
	x, y = m.Pixel(m.Bound.RightBottom())
	assert.InDelta(t, m.Width-1, x, 1)
	assert.InDelta(t, m.Height-1, y, 1)
}

func TestNewCoverageMap_Errors(t *testing.T) {
	_, err := NewCoverageMap("stereoTop", nil, 10)
	assert.ErrorIs(t, err, ErrNoFootprints)

	far := footprint(t, "ds-1", 100, "08/16/2016 13:50:49")
	far.FOVEast += 5000
	_, err = NewCoverageMap("stereoTop", []*ledger.FootprintRecord{far}, 10)
	assert.ErrorContains(t, err, "too large")
}

func TestNewCoverageMap_OtherZone(t *testing.T) {
	rec := footprint(t, "ds-1", 100, "08/16/2016 13:50:49")

	other := *rec
	other.Position = utm.Coordinate{ZoneNumber: rec.Position.ZoneNumber + 1, ZoneLetter: rec.Position.ZoneLetter}
	other.NW = position.LatLon{Lat: 33.07, Lon: -105.0}
	other.SE = position.LatLon{Lat: 33.06, Lon: -104.99}

	m, err := NewCoverageMap("stereoTop", []*ledger.FootprintRecord{rec, &other}, 10)

	require.NoError(t, err)
	assert.Len(t, m.Footprints, 1)
	assert.Equal(t, 1, m.Skipped)
}

func TestRun(t *testing.T) {
	// Mock
	out := filepath.Join(t.TempDir(), "coverage")
	config, err := newConfigFromArgs("coverage", []string{
		"-db", seedLedger(t),
		"-sensor", "stereoTop",
		"-o", out,
		"-scale", "20",
	}, io.Discard)
	require.NoError(t, err)

	// Tested code
	err = Run(context.Background(), config, discard)

	// Asserts
	require.NoError(t, err)

	f, err := os.Open(out + ".png")
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)

	size := img.Bounds().Size()
	assert.Greater(t, size.X, defaultLeftBorder+defaultRightBorder)
	assert.Greater(t, size.Y, defaultTopBorder+defaultBottomBorder)

	// map area is not the white page background
	r, g, b, _ := img.At(defaultLeftBorder+1, defaultTopBorder+1).RGBA()
	assert.False(t, r == 0xffff && g == 0xffff && b == 0xffff)
}

func TestRun_NoFootprints(t *testing.T) {
	config := NewConfig()
	config.DBPath = seedLedger(t)
	config.Sensor = "flirIrCamera"
	config.OutputFile = filepath.Join(t.TempDir(), "coverage.png")

	err := Run(context.Background(), config, discard)

	assert.ErrorIs(t, err, ErrNoFootprints)
	assert.NoFileExists(t, config.OutputFile)
}

func TestRun_MissingDatabase(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "missing.db")

	assert.Error(t, Run(context.Background(), config, discard))
}

func TestCoverageRenderer_NoAnnotations(t *testing.T) {
	m := &CoverageMap{
		Sensor:     "stereoTop",
		Footprints: []orb.Bound{{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}}},
		Bound:      orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}},
		Width:      21,
		Height:     11,
		Scale:      10,
	}

	img, err := NewCoverageRenderer(RenderConfig{NoAnnotations: true}).Render(m)

	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 21, 11), img.Bounds())
	assert.NotEqual(t, backgroundColor, img.RGBAAt(10, 5))
}

func TestCalculateNiceDistanceStep(t *testing.T) {
	tests := []struct {
		span   float64
		pixels int
		want   float64
	}{
		{span: 10, pixels: 1500, want: 1},
		{span: 100, pixels: 600, want: 50},
		{span: 3, pixels: 300, want: 2},
		{span: 0, pixels: 300, want: 1},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, calculateNiceDistanceStep(tt.span, tt.pixels), 1e-9, "%v", tt)
	}
}
