package clowder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// FileInfo fetches a file description
func (c *Client) FileInfo(ctx context.Context, fileID string) (*File, error) {
	data, err := c.getJSON(ctx, "api/files/"+url.PathEscape(fileID)+"/metadata", nil)
	if err != nil {
		return nil, fmt.Errorf("getting file info: %w", err)
	}

	var f File
	if err = json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding file info: %w", err)
	}
	return &f, nil
}

// UploadFileMetadata attaches a JSON-LD metadata entry to a file
func (c *Client) UploadFileMetadata(ctx context.Context, fileID string, metadata []byte) error {
	if _, err := c.sendJSON(ctx, http.MethodPost, "api/files/"+url.PathEscape(fileID)+"/metadata.jsonld", nil, metadata); err != nil {
		return fmt.Errorf("uploading file metadata: %w", err)
	}
	return nil
}

// DownloadFile saves the content of a file into dir and returns the local path
func (c *Client) DownloadFile(ctx context.Context, fileID, filename, dir string) (path string, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, "api/files/"+url.PathEscape(fileID), nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Del("Accept")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPError{Method: req.Method, URL: redact(req.URL), Status: resp.StatusCode, Body: string(body)}
	}

	if filename == "" {
		filename = fileID
	}
	path = filepath.Join(dir, filepath.Base(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating local file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
		if err != nil {
			_ = os.Remove(path)
			path = ""
		}
	}()

	if _, err = io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing local file: %w", err)
	}
	return path, nil
}
