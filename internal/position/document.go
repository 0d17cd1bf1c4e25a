package position

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	measurementKey = "lemnatec_measurement_metadata"

	GantrySection = "gantry_system_variable_metadata"
	SensorSection = "sensor_fixed_metadata"
)

// Document is a read-only view over a platform metadata document. Field names
// inside it are not stable across data collection seasons.
type Document struct {
	root gjson.Result
}

// ParseDocument wraps raw JSON metadata
func ParseDocument(data []byte) (Document, error) {
	if !gjson.ValidBytes(data) {
		return Document{}, fmt.Errorf("invalid metadata document")
	}
	return Document{root: gjson.ParseBytes(data)}, nil
}

// DocumentFromMap wraps an already decoded metadata mapping
func DocumentFromMap(m map[string]any) (Document, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Document{}, fmt.Errorf("marshaling metadata: %w", err)
	}
	return Document{root: gjson.ParseBytes(data)}, nil
}

// DocumentFromResult wraps a gjson result that is expected to be an object
func DocumentFromResult(r gjson.Result) Document {
	return Document{root: r}
}

// Section returns a measurement metadata sub-section, e.g. GantrySection
func (d Document) Section(name string) (gjson.Result, bool) {
	lem, ok := lookup(d.root, measurementKey)
	if !ok || !lem.IsObject() {
		return gjson.Result{}, false
	}
	sec, ok := lookup(lem, name)
	if !ok || !sec.IsObject() {
		return gjson.Result{}, false
	}
	return sec, true
}

// Raw returns the underlying JSON
func (d Document) Raw() string {
	return d.root.Raw
}

// lookup finds an exact key in a JSON object without interpreting gjson path
// syntax, since metadata keys contain spaces, brackets and dots.
func lookup(obj gjson.Result, key string) (val gjson.Result, found bool) {
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			val, found = v, true
			return false
		}
		return true
	})
	return
}

// KeyVariants returns the spellings a metadata key is looked up under: the key
// as given, then with its first character upper-cased. Only the leading
// character is changed; the rest of the key is left alone.
func KeyVariants(key string) []string {
	first, size := utf8.DecodeRuneInString(key)
	if first == utf8.RuneError {
		return []string{key}
	}
	if capitalized := string(unicode.ToUpper(first)) + key[size:]; capitalized != key {
		return []string{key, capitalized}
	}
	return []string{key}
}

func lookupVariant(obj gjson.Result, key string) (gjson.Result, bool) {
	for _, k := range KeyVariants(key) {
		if v, ok := lookup(obj, k); ok {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// Value is a raw metadata value coerced towards a float. Values that cannot be
// parsed are kept as they are and flagged non-numeric.
type Value struct {
	raw     string
	num     float64
	numeric bool
}

// Number returns a numeric Value
func Number(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'g', -1, 64), num: f, numeric: true}
}

// Text returns a Value parsed from text, as metadata strings are
func Text(s string) Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return Value{raw: s, num: f, numeric: true}
	}
	return Value{raw: s}
}

func valueOf(r gjson.Result) Value {
	switch r.Type {
	case gjson.Number:
		return Value{raw: r.Raw, num: r.Num, numeric: true}
	case gjson.String:
		return Text(r.Str)
	default:
		return Value{raw: r.Raw}
	}
}

// Float returns the numeric value and whether the value is numeric at all
func (v Value) Float() (float64, bool) {
	return v.num, v.numeric
}

// IsNumeric reports whether the value could be coerced to a float
func (v Value) IsNumeric() bool {
	return v.numeric
}

// Empty reports whether the value carries nothing: null, an empty string or false
func (v Value) Empty() bool {
	return !v.numeric && (v.raw == "" || v.raw == "null" || v.raw == "false")
}

// Falsy reports whether the value would count as empty: a zero number or an
// empty value.
func (v Value) Falsy() bool {
	if v.numeric {
		return v.num == 0
	}
	return v.Empty()
}

func (v Value) String() string {
	return v.raw
}
