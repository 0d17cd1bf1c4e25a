package position

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ZeroIsMissing makes a resolved value of exactly zero count as absent. Historical
// extractors tested fields for truthiness, so a gantry parked at 0.0 or a sensor
// mounted at a zero offset was skipped. Kept until the data owners decide otherwise.
const ZeroIsMissing = true

// UnknownTime is the capture time recorded when the metadata carries none
const UnknownTime = "unknown"

const combinedFOVKey = "field of view at 2m in X- Y- direction [m]"

// FieldSpec names a logical field, the section it lives in and the historical
// key spellings tried in order.
type FieldSpec struct {
	Name    string
	Section string
	Keys    []string
}

type fieldSpec struct {
	FieldSpec
	target func(*Pose) *Value
}

var fieldSpecs = []fieldSpec{
	{
		FieldSpec{"gantry_x", GantrySection, []string{"position x [m]", "position X [m]"}},
		func(p *Pose) *Value { return &p.GantryX },
	},
	{
		FieldSpec{"gantry_y", GantrySection, []string{"position y [m]", "position Y [m]"}},
		func(p *Pose) *Value { return &p.GantryY },
	},
	{
		FieldSpec{"camera_offset_x", SensorSection, []string{"location in camera box x [m]", "location in camera box X [m]"}},
		func(p *Pose) *Value { return &p.CameraOffsetX },
	},
	{
		FieldSpec{"camera_offset_y", SensorSection, []string{"location in camera box y [m]", "location in camera box Y [m]"}},
		func(p *Pose) *Value { return &p.CameraOffsetY },
	},
	{
		FieldSpec{"fov_x", SensorSection, []string{"field of view x [m]", "field of view X [m]"}},
		func(p *Pose) *Value { return &p.FOVX },
	},
	{
		FieldSpec{"fov_y", SensorSection, []string{"field of view y [m]", "field of view Y [m]"}},
		func(p *Pose) *Value { return &p.FOVY },
	},
}

// timeSections lists where the capture time is looked up, in order
var timeSections = []string{SensorSection, GantrySection}

// Fields returns the field lookup table
func Fields() []FieldSpec {
	specs := make([]FieldSpec, len(fieldSpecs))
	for i, spec := range fieldSpecs {
		specs[i] = FieldSpec{
			Name:    spec.Name,
			Section: spec.Section,
			Keys:    append([]string(nil), spec.Keys...),
		}
	}
	return specs
}

// Resolver extracts a Pose from a metadata document
type Resolver struct {
	// ZeroIsMissing treats zero values as absent, see the package constant
	ZeroIsMissing bool
}

var defaultResolver = Resolver{ZeroIsMissing: ZeroIsMissing}

// Resolve extracts a Pose with the default resolver settings
func Resolve(doc Document) (*Pose, bool) {
	return defaultResolver.Resolve(doc)
}

// Resolve returns a fully resolved Pose, or false when any of the six numeric
// fields is missing. A partially resolved Pose is never returned.
func (r Resolver) Resolve(doc Document) (*Pose, bool) {
	gantry, ok := doc.Section(GantrySection)
	if !ok {
		return nil, false
	}
	sensor, ok := doc.Section(SensorSection)
	if !ok {
		return nil, false
	}
	sections := map[string]gjson.Result{
		GantrySection: gantry,
		SensorSection: sensor,
	}

	var pose Pose
	found := make(map[string]bool, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		for _, key := range spec.Keys {
			if v, ok := lookupVariant(sections[spec.Section], key); ok {
				*spec.target(&pose) = valueOf(v)
				found[spec.Name] = true
				break
			}
		}
	}

	fovXMissing := r.missing(found["fov_x"], pose.FOVX)
	fovYMissing := r.missing(found["fov_y"], pose.FOVY)
	if fovXMissing || fovYMissing {
		if v, ok := lookupVariant(sensor, combinedFOVKey); ok {
			tokens := splitCombinedFOV(v.String())
			if fovXMissing && len(tokens) > 0 {
				pose.FOVX = Text(tokens[0])
				found["fov_x"] = true
			}
			if fovYMissing && len(tokens) > 1 {
				pose.FOVY = Text(tokens[1])
				found["fov_y"] = true
			}
		}
	}

	pose.CaptureTime = UnknownTime
	for _, name := range timeSections {
		if v, ok := lookupVariant(sections[name], "time"); ok {
			pose.CaptureTime = v.String()
			break
		}
	}

	for _, spec := range fieldSpecs {
		if r.missing(found[spec.Name], *spec.target(&pose)) {
			return nil, false
		}
	}

	return &pose, true
}

func (r Resolver) missing(found bool, v Value) bool {
	if !found || v.Empty() {
		return true
	}
	return r.ZeroIsMissing && v.Falsy()
}

// splitCombinedFOV splits values such as "[1.2] [0.8]" into their numbers
func splitCombinedFOV(s string) []string {
	s = strings.NewReplacer("[", "", "]", "").Replace(s)
	return strings.Fields(s)
}
