package clowder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Dataset is the platform's description of a dataset
type Dataset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Created     string   `json:"created"`
	AuthorID    string   `json:"authorId"`
	SpaceIDs    []string `json:"spaces"`
}

// SensorName returns the sensor part of a dataset name such as
// "stereoTop - 2016-08-16__13-50-49-000".
func (d *Dataset) SensorName() string {
	name, _, _ := strings.Cut(d.Name, " - ")
	return strings.TrimSpace(name)
}

// File is a file entry of a dataset
type File struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"contentType"`
	Created     string      `json:"date-created"`
	Size        json.Number `json:"size,omitempty"`
	Filepath    string      `json:"filepath,omitempty"`
}

// DatasetInfo fetches a dataset description
func (c *Client) DatasetInfo(ctx context.Context, datasetID string) (*Dataset, error) {
	data, err := c.getJSON(ctx, "api/datasets/"+url.PathEscape(datasetID), nil)
	if err != nil {
		return nil, fmt.Errorf("getting dataset info: %w", err)
	}

	var ds Dataset
	if err = json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decoding dataset info: %w", err)
	}
	return &ds, nil
}

// DatasetFiles lists the files of a dataset
func (c *Client) DatasetFiles(ctx context.Context, datasetID string) ([]File, error) {
	data, err := c.getJSON(ctx, "api/datasets/"+url.PathEscape(datasetID)+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("listing dataset files: %w", err)
	}

	var files []File
	if err = json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decoding dataset files: %w", err)
	}
	return files, nil
}

// DownloadDatasetMetadata returns the JSON-LD metadata list of a dataset. When
// extractor is set, only the entries created by that extractor are returned.
func (c *Client) DownloadDatasetMetadata(ctx context.Context, datasetID, extractor string) ([]byte, error) {
	var q url.Values
	if extractor != "" {
		q = url.Values{"extractor": {extractor}}
	}

	data, err := c.getJSON(ctx, "api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", q)
	if err != nil {
		return nil, fmt.Errorf("downloading dataset metadata: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("downloading dataset metadata: invalid JSON response")
	}
	return data, nil
}

// UploadDatasetMetadata attaches a JSON-LD metadata entry to a dataset
func (c *Client) UploadDatasetMetadata(ctx context.Context, datasetID string, metadata []byte) error {
	if _, err := c.sendJSON(ctx, http.MethodPost, "api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", nil, metadata); err != nil {
		return fmt.Errorf("uploading dataset metadata: %w", err)
	}
	return nil
}

// DeleteDatasetMetadata removes all JSON-LD metadata of a dataset
func (c *Client) DeleteDatasetMetadata(ctx context.Context, datasetID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", nil, nil)
	if err != nil {
		return err
	}
	if _, err = c.do(req); err != nil {
		return fmt.Errorf("deleting dataset metadata: %w", err)
	}
	return nil
}

// UploadFileToDataset uploads a local file into a dataset and returns the new
// file ID.
func (c *Client) UploadFileToDataset(ctx context.Context, datasetID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	return c.UploadToDataset(ctx, datasetID, filepath.Base(path), f)
}

// UploadToDataset uploads the content of r as a file named filename
func (c *Client) UploadToDataset(ctx context.Context, datasetID, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("File", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err = io.Copy(part, r); err != nil {
		return "", fmt.Errorf("writing form file: %w", err)
	}
	if err = mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "api/uploadToDataset/"+url.PathEscape(datasetID), nil, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filename, err)
	}
	return gjson.GetBytes(data, "id").String(), nil
}

// SubmitExtraction queues a dataset for the named extractor
func (c *Client) SubmitExtraction(ctx context.Context, datasetID, extractor string, parameters map[string]any) error {
	if parameters == nil {
		parameters = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"extractor":  extractor,
		"parameters": parameters,
	})
	if err != nil {
		return fmt.Errorf("marshaling extraction request: %w", err)
	}

	if _, err = c.sendJSON(ctx, http.MethodPost, "api/datasets/"+url.PathEscape(datasetID)+"/extractions", nil, body); err != nil {
		return fmt.Errorf("submitting %s: %w", extractor, err)
	}
	return nil
}
