package clowder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testKey = "s3cr3t"

// fakePlatform records what the client sent
type fakePlatform struct {
	t        *testing.T
	router   chi.Router
	bodies   map[string][]byte
	uploaded map[string]string
}

func newFakePlatform(t *testing.T) (*fakePlatform, *Client) {
	t.Helper()

	fp := &fakePlatform{
		t:        t,
		router:   chi.NewRouter(),
		bodies:   map[string][]byte{},
		uploaded: map[string]string{},
	}
	fp.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("key") != testKey {
				http.Error(w, "not authorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	srv := httptest.NewServer(fp.router)
	t.Cleanup(srv.Close)

	return fp, NewClient(srv.URL, testKey)
}

func (fp *fakePlatform) record(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(fp.t, err)
		fp.bodies[name] = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 17}`))
	}
}

func TestClient_DatasetInfo(t *testing.T) {
	// Mock
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/datasets/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "` + chi.URLParam(r, "id") + `", "name": "stereoTop - 2016-08-16__13-50-49-000"}`))
	})

	// Tested code
	ds, err := c.DatasetInfo(context.Background(), "ds-1")

	// Asserts
	require.NoError(t, err)
	assert.Equal(t, "ds-1", ds.ID)
	assert.Equal(t, "stereoTop", ds.SensorName())
}

func TestClient_DatasetFiles(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/datasets/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "f1", "filename": "a_left.bin", "size": "1024"},
			{"id": "f2", "filename": "a_metadata.json", "size": 77}
		]`))
	})

	files, err := c.DatasetFiles(context.Background(), "ds-1")

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a_left.bin", files[0].Filename)
	assert.Equal(t, "77", files[1].Size.String())
}

func TestClient_Unauthorized(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/datasets/{id}", func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.WithKey("wrong").DatasetInfo(context.Background(), "ds-1")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.False(t, httpErr.Temporary())
	assert.NotContains(t, err.Error(), "wrong", "the key is redacted")
}

func TestClient_ServerErrorIsTemporary(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/datasets/{id}/metadata.jsonld", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mongo unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.DownloadDatasetMetadata(context.Background(), "ds-1", "")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, httpErr.Temporary())
	assert.Contains(t, err.Error(), "mongo unavailable")
}

func TestClient_DownloadDatasetMetadataByExtractor(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/datasets/{id}/metadata.jsonld", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "terra.metadata.sensorposition", r.URL.Query().Get("extractor"))
		_, _ = w.Write([]byte(`[]`))
	})

	md, err := c.DownloadDatasetMetadata(context.Background(), "ds-1", "terra.metadata.sensorposition")

	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(md))
}

func TestClient_MetadataRoundTrip(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Post("/api/datasets/{id}/metadata.jsonld", fp.record("dataset"))
	fp.router.Post("/api/files/{id}/metadata.jsonld", fp.record("file"))
	deleted := false
	fp.router.Delete("/api/datasets/{id}/metadata.jsonld", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
	})

	ctx := context.Background()
	require.NoError(t, c.UploadDatasetMetadata(ctx, "ds-1", []byte(`{"content": {"a": 1}}`)))
	require.NoError(t, c.UploadFileMetadata(ctx, "f-1", []byte(`{"content": {"b": 2}}`)))
	require.NoError(t, c.DeleteDatasetMetadata(ctx, "ds-1"))

	assert.JSONEq(t, `{"content": {"a": 1}}`, string(fp.bodies["dataset"]))
	assert.JSONEq(t, `{"content": {"b": 2}}`, string(fp.bodies["file"]))
	assert.True(t, deleted)
}

func TestClient_UploadFileToDataset(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Post("/api/uploadToDataset/{id}", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("File")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		assert.NoError(t, err)
		fp.uploaded[hdr.Filename] = string(data)
		_, _ = w.Write([]byte(`{"id": "new-file"}`))
	})

	path := filepath.Join(t.TempDir(), "scan.cdl")
	require.NoError(t, os.WriteFile(path, []byte("netcdf scan {}"), 0o644))

	id, err := c.UploadFileToDataset(context.Background(), "ds-1", path)

	require.NoError(t, err)
	assert.Equal(t, "new-file", id)
	assert.Equal(t, "netcdf scan {}", fp.uploaded["scan.cdl"])
}

func TestClient_SubmitExtraction(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Post("/api/datasets/{id}/extractions", fp.record("extraction"))

	err := c.SubmitExtraction(context.Background(), "ds-1", "terra.stereo-rgb.bin2tif", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"extractor": "terra.stereo-rgb.bin2tif", "parameters": {}}`, string(fp.bodies["extraction"]))
}

func TestClient_DownloadFile(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "f-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("CDF\x01"))
	})
	fp.router.Get("/api/files/{id}/metadata", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "f-1", "filename": "scan.nc"}`))
	})

	dir := t.TempDir()
	info, err := c.FileInfo(context.Background(), "f-1")
	require.NoError(t, err)

	path, err := c.DownloadFile(context.Background(), "f-1", info.Filename, dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scan.nc"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CDF\x01", string(data))

	_, err = c.DownloadFile(context.Background(), "f-2", "", dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Geostreams(t *testing.T) {
	fp, c := newFakePlatform(t)
	fp.router.Get("/api/geostreams/streams", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": 11, "name": "stereoTop Datasets"},
			{"id": 12, "name": "stereoTop"}
		]`))
	})
	fp.router.Post("/api/geostreams/streams", fp.record("stream"))
	fp.router.Post("/api/geostreams/datapoints", fp.record("datapoint"))

	ctx := context.Background()

	// Tested code
	id, err := c.StreamByName(ctx, "stereoTop")
	require.NoError(t, err)
	assert.Equal(t, "12", id)

	_, err = c.StreamByName(ctx, "flirIrCamera")
	assert.ErrorIs(t, err, ErrNotFound)

	s := &Stream{Name: "flirIrCamera", Geometry: PointGeometry(-111.97, 33.07, 0), SensorID: "2"}
	created, err := c.CreateStream(ctx, s)
	require.NoError(t, err)

	_, err = c.CreateDatapoint(ctx, &Datapoint{
		StartTime:  "2016-08-16T13:50:49-06:00",
		EndTime:    "2016-08-16T13:50:49-06:00",
		Geometry:   PointGeometry(-111.97, 33.07, 0),
		Properties: map[string]any{"sources": "https://host/datasets/ds-1"},
		StreamID:   NumericID(created),
	})
	require.NoError(t, err)

	// Asserts
	assert.Equal(t, "17", created)
	assert.JSONEq(t, `{
		"name": "flirIrCamera",
		"type": "point",
		"geometry": {"type": "Point", "coordinates": [-111.97, 33.07, 0]},
		"properties": {},
		"sensor_id": 2
	}`, string(fp.bodies["stream"]))

	dp := gjson.ParseBytes(fp.bodies["datapoint"])
	assert.Equal(t, "Point", dp.Get("type").String())
	assert.Equal(t, int64(17), dp.Get("stream_id").Int())
	assert.Equal(t, gjson.Number, dp.Get("stream_id").Type)
	assert.Equal(t, dp.Get("start_time").String(), dp.Get("end_time").String())
}

func TestNumericID(t *testing.T) {
	b, err := json.Marshal(NumericID("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(b))

	b, err = json.Marshal(NumericID("5a8f"))
	require.NoError(t, err)
	assert.Equal(t, `"5a8f"`, string(b))
}

func TestNewClient_Host(t *testing.T) {
	c := NewClient("https://terraref.example.org/clowder", "k")

	assert.Equal(t, "https://terraref.example.org/clowder/", c.Host())
	assert.Equal(t, "https://terraref.example.org/clowder/api/datasets/x?key=k", c.endpoint("api/datasets/x", nil))
	assert.Same(t, c, c.WithKey(""))
}
