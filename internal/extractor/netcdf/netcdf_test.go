package netcdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder/clowdertest"
	"github.com/roman-kulish/gantry-extractors/internal/convert"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
)

const prefix = "EnvironmentLogger/2016-08-16/2016-08-16__13-50-49-000/envlog"

// fakeDumper renders a small document per format
type fakeDumper struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (d *fakeDumper) Dump(ctx context.Context, w io.Writer, input string, c convert.NCKSConfig) error {
	d.mu.Lock()
	d.inputs = append(d.inputs, input)
	d.mu.Unlock()

	if d.err != nil {
		return d.err
	}
	if !c.MetadataOnly || !c.GlobalMetadata {
		return errors.New("header dump expected")
	}

	switch c.Format {
	case convert.FormatJSON:
		_, err := io.WriteString(w, `{"attributes": {"title": "envlog"}}`)
		return err
	default:
		_, err := fmt.Fprintf(w, "netcdf envlog { // %s }", c.Format)
		return err
	}
}

func newPlatform(t *testing.T) *clowdertest.Server {
	t.Helper()

	srv := clowdertest.NewServer(t)
	srv.Router.Get("/api/datasets/ds-1", clowdertest.Raw(`{"id": "ds-1", "name": "EnvironmentLogger - 2016-08-16__13-50-49-000"}`))
	srv.Router.Post("/api/uploadToDataset/ds-1", clowdertest.Raw(`{"id": "f-new"}`))
	srv.Router.Post("/api/datasets/ds-1/metadata.jsonld", clowdertest.Raw(`{}`))
	return srv
}

func newEvent(srv *clowdertest.Server) *extractor.Event {
	ev := extractor.NewEvent(&bus.Message{
		ID:           "f-1",
		DatasetID:    "ds-1",
		Filename:     "envlog.nc",
		ResourceType: bus.ResourceFile,
	}, srv.Client())
	ev.Resource.LocalPaths = []string{"/tmp/envlog.nc"}
	return ev
}

func newBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	return bucket
}

func put(t *testing.T, bucket *blob.Bucket, key string) {
	t.Helper()
	require.NoError(t, bucket.WriteAll(context.Background(), key, []byte("existing"), nil))
}

func TestExtractor_CheckMissingOutputs(t *testing.T) {
	srv := newPlatform(t)
	bucket := newBucket(t)
	e := New(bucket, &fakeDumper{})

	got, err := e.Check(context.Background(), newEvent(srv))
	require.NoError(t, err)
	assert.Equal(t, extractor.Download, got)

	put(t, bucket, prefix+".cdl")
	put(t, bucket, prefix+".xml")

	got, err = e.Check(context.Background(), newEvent(srv))
	require.NoError(t, err)
	assert.Equal(t, extractor.Download, got)

	put(t, bucket, prefix+".json")

	got, err = e.Check(context.Background(), newEvent(srv))
	require.NoError(t, err)
	assert.Equal(t, extractor.Ignore, got)
}

func TestExtractor_CheckOverwrite(t *testing.T) {
	srv := newPlatform(t)
	bucket := newBucket(t)
	for _, f := range convert.Formats {
		put(t, bucket, prefix+f.Extension())
	}
	e := New(bucket, &fakeDumper{}, WithOverwrite(true))

	got, err := e.Check(context.Background(), newEvent(srv))

	require.NoError(t, err)
	assert.Equal(t, extractor.Download, got)
}

func TestExtractor_CheckIgnoresOtherFiles(t *testing.T) {
	srv := newPlatform(t)
	e := New(newBucket(t), &fakeDumper{})
	ev := newEvent(srv)
	ev.Resource.Name = "envlog.csv"

	got, err := e.Check(context.Background(), ev)

	require.NoError(t, err)
	assert.Equal(t, extractor.Ignore, got)
}

func TestExtractor_Process(t *testing.T) {
	// Mock
	srv := newPlatform(t)
	bucket := newBucket(t)
	put(t, bucket, prefix+".cdl")
	dumper := &fakeDumper{}
	e := New(bucket, dumper)

	// Tested code
	res, err := e.Process(context.Background(), newEvent(srv))

	// Asserts
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesCreated)
	assert.Positive(t, res.BytesCreated)
	assert.Equal(t, []string{"/tmp/envlog.nc", "/tmp/envlog.nc"}, dumper.inputs)

	existing, err := bucket.ReadAll(context.Background(), prefix+".cdl")
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))

	xml, err := bucket.ReadAll(context.Background(), prefix+".xml")
	require.NoError(t, err)
	assert.Contains(t, string(xml), "// xml")

	attrs, err := bucket.Attributes(context.Background(), prefix+".json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", attrs.ContentType)

	uploads := srv.Requests(http.MethodPost, "/api/uploadToDataset/ds-1")
	assert.Len(t, uploads, 2)

	md := srv.Requests(http.MethodPost, "/api/datasets/ds-1/metadata.jsonld")
	require.Len(t, md, 1)
	doc := gjson.ParseBytes(md[0].Body)
	assert.Equal(t, "envlog", doc.Get("content.attributes.title").String())
	assert.Equal(t, "f-1", doc.Get("attachedTo.id").String())
	assert.Equal(t, srv.Client().Host()+"api/extractors/"+Name, doc.Get("agent.extractor_id").String())
}

func TestExtractor_ProcessNothingMissing(t *testing.T) {
	srv := newPlatform(t)
	bucket := newBucket(t)
	for _, f := range convert.Formats {
		put(t, bucket, prefix+f.Extension())
	}
	e := New(bucket, &fakeDumper{})

	_, err := e.Process(context.Background(), newEvent(srv))

	assert.ErrorIs(t, err, extractor.ErrNothingToDo)
}

func TestExtractor_ProcessDumpFailure(t *testing.T) {
	srv := newPlatform(t)
	bucket := newBucket(t)
	e := New(bucket, &fakeDumper{err: errors.New("ncks: exit status 1")})

	res, err := e.Process(context.Background(), newEvent(srv))

	require.Error(t, err)
	assert.False(t, bus.IsTransient(err))
	assert.Zero(t, res.FilesCreated)
	assert.Empty(t, srv.Requests(http.MethodPost, "/api/uploadToDataset/ds-1"))
}

func TestExtractor_ProcessNotDownloaded(t *testing.T) {
	srv := newPlatform(t)
	e := New(newBucket(t), &fakeDumper{})
	ev := newEvent(srv)
	ev.Resource.LocalPaths = nil

	_, err := e.Process(context.Background(), ev)

	assert.Error(t, err)
}
