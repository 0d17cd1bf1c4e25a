package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metadata(gantry, sensor map[string]any) map[string]any {
	return map[string]any{
		"lemnatec_measurement_metadata": map[string]any{
			"gantry_system_variable_metadata": gantry,
			"sensor_fixed_metadata":           sensor,
		},
	}
}

func completeGantry() map[string]any {
	return map[string]any{
		"position x [m]": "100.0",
		"position y [m]": "10.0",
		"time":           "08/16/2016 13:50:49",
	}
}

func completeSensor() map[string]any {
	return map[string]any{
		"location in camera box x [m]": "0.5",
		"location in camera box y [m]": "0.2",
		"field of view x [m]":          "2.0",
		"field of view y [m]":          "1.5",
	}
}

func mustResolve(t *testing.T, m map[string]any) (*Pose, bool) {
	t.Helper()
	doc, err := DocumentFromMap(m)
	require.NoError(t, err)
	return Resolve(doc)
}

func floatOf(t *testing.T, v Value) float64 {
	t.Helper()
	f, ok := v.Float()
	require.True(t, ok, "value %q is not numeric", v.String())
	return f
}

func TestResolve_Complete(t *testing.T) {
	// Tested code
	pose, ok := mustResolve(t, metadata(completeGantry(), completeSensor()))

	// Asserts
	require.True(t, ok)
	assert.Equal(t, 100.0, floatOf(t, pose.GantryX))
	assert.Equal(t, 10.0, floatOf(t, pose.GantryY))
	assert.Equal(t, 0.5, floatOf(t, pose.CameraOffsetX))
	assert.Equal(t, 0.2, floatOf(t, pose.CameraOffsetY))
	assert.Equal(t, 2.0, floatOf(t, pose.FOVX))
	assert.Equal(t, 1.5, floatOf(t, pose.FOVY))
	assert.Equal(t, "08/16/2016 13:50:49", pose.CaptureTime)
}

func TestResolve_NumbersKeptAsIs(t *testing.T) {
	gantry := map[string]any{"position x [m]": 12.25, "position y [m]": 3.5}

	pose, ok := mustResolve(t, metadata(gantry, completeSensor()))

	require.True(t, ok)
	assert.Equal(t, 12.25, floatOf(t, pose.GantryX))
	assert.Equal(t, 3.5, floatOf(t, pose.GantryY))
}

func TestResolve_LeadingCapitalTolerated(t *testing.T) {
	lower := completeGantry()
	upper := map[string]any{
		"Position x [m]": "100.0",
		"Position y [m]": "10.0",
		"Time":           "08/16/2016 13:50:49",
	}

	// Tested code
	a, okA := mustResolve(t, metadata(lower, completeSensor()))
	b, okB := mustResolve(t, metadata(upper, completeSensor()))

	// Asserts
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, *a, *b)
}

func TestResolve_UpperCaseAxisVariant(t *testing.T) {
	gantry := map[string]any{
		"Position X [m]": "100.0",
		"position Y [m]": "10.0",
	}

	pose, ok := mustResolve(t, metadata(gantry, completeSensor()))

	require.True(t, ok)
	assert.Equal(t, 100.0, floatOf(t, pose.GantryX))
	assert.Equal(t, 10.0, floatOf(t, pose.GantryY))
}

func TestResolve_OnlyLeadingCharacterIsCapitalized(t *testing.T) {
	gantry := map[string]any{
		"POSITION X [M]": "100.0",
		"position y [m]": "10.0",
	}

	_, ok := mustResolve(t, metadata(gantry, completeSensor()))

	assert.False(t, ok)
}

func TestResolve_VariantPriority(t *testing.T) {
	gantry := completeGantry()
	gantry["position X [m]"] = "999.0"

	pose, ok := mustResolve(t, metadata(gantry, completeSensor()))

	require.True(t, ok)
	assert.Equal(t, 100.0, floatOf(t, pose.GantryX))
}

func TestResolve_CombinedFOV(t *testing.T) {
	sensor := completeSensor()
	delete(sensor, "field of view x [m]")
	delete(sensor, "field of view y [m]")
	sensor["field of view at 2m in X- Y- direction [m]"] = "[1.2] [0.8]"

	// Tested code
	pose, ok := mustResolve(t, metadata(completeGantry(), sensor))

	// Asserts
	require.True(t, ok)
	assert.Equal(t, 1.2, floatOf(t, pose.FOVX))
	assert.Equal(t, 0.8, floatOf(t, pose.FOVY))
}

func TestResolve_CombinedFOVDoesNotOverwrite(t *testing.T) {
	sensor := completeSensor()
	delete(sensor, "field of view y [m]")
	sensor["Field of view at 2m in X- Y- direction [m]"] = "[1.2] [0.8]"

	pose, ok := mustResolve(t, metadata(completeGantry(), sensor))

	require.True(t, ok)
	assert.Equal(t, 2.0, floatOf(t, pose.FOVX))
	assert.Equal(t, 0.8, floatOf(t, pose.FOVY))
}

func TestResolve_MissingField(t *testing.T) {
	keys := []struct {
		section string
		key     string
	}{
		{GantrySection, "position x [m]"},
		{GantrySection, "position y [m]"},
		{SensorSection, "location in camera box x [m]"},
		{SensorSection, "location in camera box y [m]"},
		{SensorSection, "field of view x [m]"},
		{SensorSection, "field of view y [m]"},
	}

	for _, k := range keys {
		t.Run(k.key, func(t *testing.T) {
			gantry, sensor := completeGantry(), completeSensor()
			if k.section == GantrySection {
				delete(gantry, k.key)
			} else {
				delete(sensor, k.key)
			}

			pose, ok := mustResolve(t, metadata(gantry, sensor))

			assert.False(t, ok)
			assert.Nil(t, pose)
		})
	}
}

func TestResolve_MissingSections(t *testing.T) {
	docs := map[string]map[string]any{
		"empty":          {},
		"no sensor":      {"lemnatec_measurement_metadata": map[string]any{"gantry_system_variable_metadata": completeGantry()}},
		"no gantry":      {"lemnatec_measurement_metadata": map[string]any{"sensor_fixed_metadata": completeSensor()}},
		"not an object":  {"lemnatec_measurement_metadata": "n/a"},
		"unrelated root": {"content": metadata(completeGantry(), completeSensor())},
	}

	for name, m := range docs {
		t.Run(name, func(t *testing.T) {
			_, ok := mustResolve(t, m)
			assert.False(t, ok)
		})
	}
}

func TestResolve_ZeroIsMissing(t *testing.T) {
	sensor := completeSensor()
	sensor["location in camera box y [m]"] = "0.0"

	// Tested code
	_, defaultOK := mustResolve(t, metadata(completeGantry(), sensor))

	doc, err := DocumentFromMap(metadata(completeGantry(), sensor))
	require.NoError(t, err)
	pose, strictOK := Resolver{ZeroIsMissing: false}.Resolve(doc)

	// Asserts
	assert.True(t, ZeroIsMissing)
	assert.False(t, defaultOK, "zero offsets are treated as missing")
	require.True(t, strictOK)
	assert.Equal(t, 0.0, floatOf(t, pose.CameraOffsetY))
}

func TestResolve_EmptyValuesAreMissing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(gantry, sensor map[string]any)
	}{
		{"null position", func(g, _ map[string]any) { g["position x [m]"] = nil }},
		{"empty field of view", func(_, s map[string]any) { s["field of view y [m]"] = "" }},
		{"false offset", func(_, s map[string]any) { s["location in camera box x [m]"] = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gantry, sensor := completeGantry(), completeSensor()
			tt.mutate(gantry, sensor)

			doc, err := DocumentFromMap(metadata(gantry, sensor))
			require.NoError(t, err)

			for _, r := range []Resolver{{ZeroIsMissing: true}, {ZeroIsMissing: false}} {
				pose, ok := r.Resolve(doc)
				assert.False(t, ok, "ZeroIsMissing=%v", r.ZeroIsMissing)
				assert.Nil(t, pose)
			}
		})
	}
}

func TestResolve_EmptyFOVFallsBackToCombined(t *testing.T) {
	sensor := completeSensor()
	sensor["field of view y [m]"] = nil
	sensor["field of view at 2m in X- Y- direction [m]"] = "[2.0] [1.5]"

	doc, err := DocumentFromMap(metadata(completeGantry(), sensor))
	require.NoError(t, err)

	// Tested code
	pose, ok := Resolver{ZeroIsMissing: false}.Resolve(doc)

	// Asserts
	require.True(t, ok)
	assert.Equal(t, 2.0, floatOf(t, pose.FOVX))
	assert.Equal(t, 1.5, floatOf(t, pose.FOVY))
}

func TestKeyVariants(t *testing.T) {
	assert.Equal(t, []string{"position x [m]", "Position x [m]"}, KeyVariants("position x [m]"))
	assert.Equal(t, []string{"Position x [m]"}, KeyVariants("Position x [m]"))
	assert.Equal(t, []string{"[m]"}, KeyVariants("[m]"))
	assert.Equal(t, []string{""}, KeyVariants(""))
}

func TestResolve_UnparseableValuePropagates(t *testing.T) {
	gantry := completeGantry()
	gantry["position x [m]"] = "n/a"

	pose, ok := mustResolve(t, metadata(gantry, completeSensor()))

	require.True(t, ok)
	assert.False(t, pose.GantryX.IsNumeric())
	assert.Equal(t, "n/a", pose.GantryX.String())
}

func TestResolve_UnknownTime(t *testing.T) {
	gantry := completeGantry()
	delete(gantry, "time")

	pose, ok := mustResolve(t, metadata(gantry, completeSensor()))

	require.True(t, ok)
	assert.Equal(t, UnknownTime, pose.CaptureTime)
}

func TestResolve_SensorTimePreferred(t *testing.T) {
	sensor := completeSensor()
	sensor["time"] = "2016-05-15T00:30:00-05:00"

	pose, ok := mustResolve(t, metadata(completeGantry(), sensor))

	require.True(t, ok)
	assert.Equal(t, "2016-05-15T00:30:00-05:00", pose.CaptureTime)
}

func TestParseDocument(t *testing.T) {
	raw := []byte(`{"lemnatec_measurement_metadata": {
		"gantry_system_variable_metadata": {"position x [m]": "4.8", "position y [m]": "1.0"},
		"sensor_fixed_metadata": {
			"location in camera box x [m]": "0.877",
			"location in camera box y [m]": "2.276",
			"field of view at 2m in X- Y- direction [m]": "[1.857 1.246]"
		}}}`)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)

	pose, ok := Resolve(doc)

	require.True(t, ok)
	assert.Equal(t, 1.857, floatOf(t, pose.FOVX))
	assert.Equal(t, 1.246, floatOf(t, pose.FOVY))

	_, err = ParseDocument([]byte(`{"broken`))
	assert.Error(t, err)
}

func TestFields_ReturnsCopy(t *testing.T) {
	fields := Fields()
	require.Len(t, fields, 6)

	fields[0].Keys[0] = "mutated"

	assert.Equal(t, "position x [m]", Fields()[0].Keys[0])
}

func TestParseCaptureTime(t *testing.T) {
	lemnatec, err := ParseCaptureTime("08/16/2016 13:50:49")
	require.NoError(t, err)
	assert.Equal(t, "2016-08-16T13:50:49-06:00", FormatCaptureTime(lemnatec))

	zoned, err := ParseCaptureTime("2016-05-15T00:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, "2016-05-15T00:30:00-05:00", FormatCaptureTime(zoned))

	_, err = ParseCaptureTime(UnknownTime)
	assert.ErrorIs(t, err, ErrUnknownTime)

	_, err = ParseCaptureTime("yesterday")
	assert.Error(t, err)
}
