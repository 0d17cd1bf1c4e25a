package bus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resource types a message can refer to
const (
	ResourceDataset = "dataset"
	ResourceFile    = "file"
)

// Message is an extraction request published by the data management platform
// when a resource changes.
type Message struct {
	Host         string          `json:"host"`
	SecretKey    string          `json:"secretKey"`
	ID           string          `json:"id"`
	DatasetID    string          `json:"datasetId"`
	Filename     string          `json:"filename"`
	ResourceType string          `json:"resource_type"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Flags        string          `json:"flags,omitempty"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`

	// set from the delivery, not the body
	RoutingKey    string `json:"-"`
	ReplyTo       string `json:"-"`
	CorrelationID string `json:"-"`
}

// DecodeMessage decodes a message body. The resource type is derived from the
// routing key when the body does not carry it.
func DecodeMessage(body []byte, routingKey string) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	m.RoutingKey = routingKey

	if m.ResourceType == "" {
		m.ResourceType = resourceTypeOf(routingKey)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("%w: resource id is missing", ErrMalformed)
	}
	return &m, nil
}

// resourceTypeOf maps routing keys such as "*.dataset.file.added" and
// "*.metadata.added" onto a resource type.
func resourceTypeOf(routingKey string) string {
	parts := strings.Split(routingKey, ".")
	for _, p := range parts {
		switch p {
		case ResourceFile:
			return ResourceFile
		case ResourceDataset:
			return ResourceDataset
		}
	}
	return ResourceDataset
}

// HasMetadata reports whether the message carries a metadata document
func (m *Message) HasMetadata() bool {
	s := strings.TrimSpace(string(m.Metadata))
	return s != "" && s != "null" && s != "{}"
}

// ResourceID returns the identifier of the resource the message is about.
// Dataset events carry the dataset in datasetId and the triggering file in id.
func (m *Message) ResourceID() string {
	if m.ResourceType == ResourceDataset && m.DatasetID != "" {
		return m.DatasetID
	}
	return m.ID
}

// ParentDatasetID returns the dataset the resource belongs to
func (m *Message) ParentDatasetID() string {
	if m.DatasetID != "" {
		return m.DatasetID
	}
	if m.ResourceType == ResourceDataset {
		return m.ID
	}
	return ""
}
