package clowder

import (
	"strings"

	"github.com/tidwall/gjson"
)

const measurementKey = "lemnatec_measurement_metadata"

// TerraMetadata returns the content of the first entry of a JSON-LD metadata
// list that carries gantry measurement metadata.
func TerraMetadata(md []byte) (gjson.Result, bool) {
	var content gjson.Result
	forEachEntry(md, func(entry gjson.Result) bool {
		c := entry.Get("content")
		if hasKey(c, measurementKey) {
			content = c
			return false
		}
		return true
	})
	return content, content.Exists()
}

// HasExtractorMetadata reports whether an extractor already attached metadata.
// The agent is matched on the last path segment of its extractor ID or name.
func HasExtractorMetadata(md []byte, extractorName string) bool {
	found := false
	forEachEntry(md, func(entry gjson.Result) bool {
		agent := entry.Get("agent")
		for _, field := range []string{"extractor_id", "name"} {
			id := strings.TrimRight(agent.Get(field).String(), "/")
			if id == "" {
				continue
			}
			if id == extractorName || strings.HasSuffix(id, "/"+extractorName) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// forEachEntry iterates a metadata list. A single object is treated as a list
// of one entry.
func forEachEntry(md []byte, fn func(entry gjson.Result) bool) {
	root := gjson.ParseBytes(md)
	if root.IsObject() {
		fn(root)
		return
	}
	root.ForEach(func(_, entry gjson.Result) bool {
		return fn(entry)
	})
}

func hasKey(obj gjson.Result, key string) bool {
	found := false
	obj.ForEach(func(k, _ gjson.Result) bool {
		if k.String() == key {
			found = true
			return false
		}
		return true
	})
	return found
}
