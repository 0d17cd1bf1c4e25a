package extractor

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MetadataContext is the JSON-LD context of platform metadata
const MetadataContext = "https://clowder.ncsa.illinois.edu/contexts/metadata.jsonld"

// TerraVocabulary is the vocabulary of cleaned gantry metadata
const TerraVocabulary = "https://terraref.ncsa.illinois.edu/metadata/uamac#"

// BuildMetadata wraps content produced by an extractor in a JSON-LD envelope
// attached to a dataset or file.
func BuildMetadata(host, extractorName, resourceID string, content []byte, resourceType string) ([]byte, error) {
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("building metadata: invalid content")
	}

	doc := []byte(`{}`)
	var err error

	set := func(path string, value any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, value)
		}
	}
	setRaw := func(path string, raw []byte) {
		if err == nil {
			doc, err = sjson.SetRawBytes(doc, path, raw)
		}
	}

	set(`\@context`, []string{MetadataContext})
	setRaw("content", content)
	set(`agent.\@type`, "cat:extractor")
	set("agent.extractor_id", strings.TrimRight(host, "/")+"/api/extractors/"+extractorName)
	set("attachedTo.resourceType", "cat:"+resourceType)
	set("attachedTo.id", resourceID)

	if err != nil {
		return nil, fmt.Errorf("building metadata: %w", err)
	}
	return doc, nil
}

// BuildUserMetadata wraps cleaned gantry metadata attributed to a platform user
func BuildUserMetadata(host, userID string, content []byte) ([]byte, error) {
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("building user metadata: invalid content")
	}

	doc := []byte(`{}`)
	var err error

	doc, err = sjson.SetRawBytes(doc, `\@context`, []byte(`["`+MetadataContext+`",{"@vocab":"`+TerraVocabulary+`"}]`))
	if err == nil {
		doc, err = sjson.SetRawBytes(doc, "content", content)
	}
	if err == nil {
		doc, err = sjson.SetBytes(doc, `agent.\@type`, "cat:user")
	}
	if err == nil {
		doc, err = sjson.SetBytes(doc, "agent.user_id", strings.TrimRight(host, "/")+"/api/users/"+userID)
	}

	if err != nil {
		return nil, fmt.Errorf("building user metadata: %w", err)
	}
	return doc, nil
}
