package mdcleaner

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder/clowdertest"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
	"github.com/roman-kulish/gantry-extractors/internal/position"
)

const driftedMetadata = `{
	"lemnatec_measurement_metadata": {
		"gantry_system_variable_metadata": {
			"time": "08/16/2016 13:50:49",
			"Position x [m]": "100",
			"position Y [m]": "10",
			"position y [m]": "11"
		},
		"sensor_fixed_metadata": {
			"location in camera box X [m]": "0.5",
			"location in camera box y [m]": "0.2",
			"field of view at 2m in X- Y- direction [m]": "[2.0] [1.5]"
		}
	}
}`

func TestClean(t *testing.T) {
	cleaned, err := Clean([]byte(driftedMetadata))
	require.NoError(t, err)

	gantry := gjson.GetBytes(cleaned, "lemnatec_measurement_metadata.gantry_system_variable_metadata")
	sensor := gjson.GetBytes(cleaned, "lemnatec_measurement_metadata.sensor_fixed_metadata")

	assert.Equal(t, "100", gantry.Get(`position x \[m\]`).String())
	assert.False(t, gantry.Get(`Position x \[m\]`).Exists())

	// canonical key already present wins, the variant is left alone
	assert.Equal(t, "11", gantry.Get(`position y \[m\]`).String())
	assert.Equal(t, "10", gantry.Get(`position Y \[m\]`).String())

	assert.Equal(t, "0.5", sensor.Get(`location in camera box x \[m\]`).String())
	assert.False(t, sensor.Get(`location in camera box X \[m\]`).Exists())

	assert.Equal(t, "2.0", sensor.Get(`field of view x \[m\]`).String())
	assert.Equal(t, "1.5", sensor.Get(`field of view y \[m\]`).String())

	assert.Equal(t, "08/16/2016 13:50:49", gantry.Get("time").String())

	// the cleaned document resolves without falling back on variants
	doc, err := position.ParseDocument(cleaned)
	require.NoError(t, err)
	pose, ok := position.Resolve(doc)
	require.True(t, ok)
	assert.Equal(t, "100", pose.GantryX.String())
}

func TestClean_Invalid(t *testing.T) {
	_, err := Clean([]byte(`{"lemnatec`))
	assert.Error(t, err)
}

func TestClean_NoSections(t *testing.T) {
	cleaned, err := Clean([]byte(`{"other": 1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"other": 1}`, string(cleaned))
}

type fixture struct {
	srv   *clowdertest.Server
	sites string
	dir   string
	cfg   extractor.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := clowdertest.NewServer(t)
	srv.Router.Get("/api/datasets/ds-1", clowdertest.Raw(`{"id": "ds-1", "name": "stereoTop - 2016-08-16__13-50-49-000"}`))
	srv.Router.Delete("/api/datasets/ds-1/metadata.jsonld", clowdertest.Raw(`{}`))
	srv.Router.Post("/api/datasets/ds-1/metadata.jsonld", clowdertest.Raw(`{}`))

	sites := t.TempDir()
	cfg := extractor.Config{
		Name:         Name,
		MountedPaths: map[string]string{"/home/clowder/sites": sites},
	}
	dir := filepath.Join(sites, "ua-mac", "raw_data", "stereoTop", "2016-08-16", "2016-08-16__13-50-49-000")

	return &fixture{srv: srv, sites: sites, dir: dir, cfg: cfg}
}

func (f *fixture) event() *extractor.Event {
	return extractor.NewEvent(&bus.Message{ID: "ds-1", ResourceType: bus.ResourceDataset}, f.srv.Client())
}

func (f *fixture) writeMetadata(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func TestExtractor_Check(t *testing.T) {
	f := newFixture(t)
	e := New(f.cfg)

	got, err := e.Check(context.Background(), f.event())

	require.NoError(t, err)
	assert.Equal(t, extractor.Bypass, got)
	assert.Empty(t, f.srv.All())
}

func TestExtractor_Process(t *testing.T) {
	// Mock
	f := newFixture(t)
	f.writeMetadata(t, "a_metadata.json", `{"lemnatec_measurement_metadata": {}}`)
	f.writeMetadata(t, "b_metadata.json", driftedMetadata)
	f.writeMetadata(t, "notes.txt", "ignored")
	e := New(f.cfg, WithUserID("user-7"))

	// Tested code
	res, err := e.Process(context.Background(), f.event())

	// Asserts
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCreated)

	assert.Len(t, f.srv.Requests(http.MethodDelete, "/api/datasets/ds-1/metadata.jsonld"), 1)

	uploaded := f.srv.Requests(http.MethodPost, "/api/datasets/ds-1/metadata.jsonld")
	require.Len(t, uploaded, 1)
	md := gjson.ParseBytes(uploaded[0].Body)

	assert.Equal(t, extractor.MetadataContext, md.Get(`\@context.0`).String())
	assert.Equal(t, extractor.TerraVocabulary, md.Get(`\@context.1.\@vocab`).String())
	assert.Equal(t, "cat:user", md.Get(`agent.\@type`).String())
	assert.Equal(t, f.srv.Host()+"api/users/user-7", md.Get("agent.user_id").String())
	assert.Equal(t, "100", md.Get(`content.lemnatec_measurement_metadata.gantry_system_variable_metadata.position x \[m\]`).String())
}

func TestExtractor_ProcessWithoutDelete(t *testing.T) {
	f := newFixture(t)
	f.writeMetadata(t, "metadata.json", driftedMetadata)
	e := New(f.cfg, WithDelete(false))

	_, err := e.Process(context.Background(), f.event())

	require.NoError(t, err)
	assert.Empty(t, f.srv.Requests(http.MethodDelete, "/api/datasets/ds-1/metadata.jsonld"))
	assert.Len(t, f.srv.Requests(http.MethodPost, "/api/datasets/ds-1/metadata.jsonld"), 1)
}

func TestExtractor_ProcessMissingSource(t *testing.T) {
	f := newFixture(t)
	e := New(f.cfg)

	_, err := e.Process(context.Background(), f.event())

	assert.ErrorIs(t, err, extractor.ErrNothingToDo)
	assert.Empty(t, f.srv.Requests(http.MethodPost, "/api/datasets/ds-1/metadata.jsonld"))
}

func TestExtractor_ProcessNoMetadataFile(t *testing.T) {
	f := newFixture(t)
	f.writeMetadata(t, "notes.txt", "ignored")
	e := New(f.cfg)

	_, err := e.Process(context.Background(), f.event())

	assert.ErrorIs(t, err, extractor.ErrNothingToDo)
}

func TestExtractor_ProcessBadDatasetName(t *testing.T) {
	srv := clowdertest.NewServer(t)
	srv.Router.Get("/api/datasets/ds-1", clowdertest.Raw(`{"id": "ds-1", "name": "uploaded by hand"}`))
	e := New(extractor.Config{Name: Name})

	_, err := e.Process(context.Background(), extractor.NewEvent(&bus.Message{ID: "ds-1", ResourceType: bus.ResourceDataset}, srv.Client()))

	require.Error(t, err)
	assert.False(t, bus.IsTransient(err))
}
