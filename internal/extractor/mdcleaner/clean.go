package mdcleaner

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/roman-kulish/gantry-extractors/internal/position"
)

const (
	measurementKey = "lemnatec_measurement_metadata"
	combinedFOVKey = "field of view at 2m in X- Y- direction [m]"
)

// Clean rewrites drifted key spellings of the pose fields to their canonical
// spelling, the first one of each field. A canonical key that is already
// present is never overwritten. Field of view values found only in the
// combined "X- Y-" key are split into their own keys.
func Clean(doc []byte) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid metadata document")
	}

	var err error
	for _, spec := range position.Fields() {
		section := escape(measurementKey) + "." + escape(spec.Section)
		sec := gjson.GetBytes(doc, section)
		if !sec.IsObject() {
			continue
		}

		canonical := spec.Keys[0]
		if sec.Get(escape(canonical)).Exists() {
			continue
		}

		key, raw, ok := findVariant(sec, spec.Keys)
		if !ok {
			continue
		}

		if doc, err = sjson.SetRawBytes(doc, section+"."+escape(canonical), []byte(raw)); err != nil {
			return nil, err
		}
		if doc, err = sjson.DeleteBytes(doc, section+"."+escape(key)); err != nil {
			return nil, err
		}
	}

	return splitCombinedFOV(doc)
}

func splitCombinedFOV(doc []byte) ([]byte, error) {
	section := escape(measurementKey) + "." + escape(position.SensorSection)
	sec := gjson.GetBytes(doc, section)
	if !sec.IsObject() {
		return doc, nil
	}

	_, combined, ok := findVariant(sec, []string{combinedFOVKey})
	if !ok {
		return doc, nil
	}
	tokens := strings.Fields(strings.NewReplacer("[", "", "]", "").Replace(gjson.Parse(combined).String()))

	var err error
	for i, name := range []string{"fov_x", "fov_y"} {
		if i >= len(tokens) {
			break
		}
		canonical := fieldKey(name)
		if canonical == "" || sec.Get(escape(canonical)).Exists() {
			continue
		}
		if doc, err = sjson.SetBytes(doc, section+"."+escape(canonical), tokens[i]); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// findVariant returns the first key of keys present in obj, also trying each
// key with its first letter upper-cased.
func findVariant(obj gjson.Result, keys []string) (key, raw string, found bool) {
	for _, k := range keys {
		for _, candidate := range position.KeyVariants(k) {
			if v := obj.Get(escape(candidate)); v.Exists() {
				return candidate, v.Raw, true
			}
		}
	}
	return "", "", false
}

func fieldKey(name string) string {
	for _, spec := range position.Fields() {
		if spec.Name == name {
			return spec.Keys[0]
		}
	}
	return ""
}

// escape quotes a literal key for use in a gjson or sjson path
func escape(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
