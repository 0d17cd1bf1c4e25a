package app

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gantry-extractors/internal/extractor/mdcleaner"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/repairer"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/sensorposition"
	"github.com/roman-kulish/gantry-extractors/internal/ledger"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMigrate(t *testing.T) {
	// Mock
	path := filepath.Join(t.TempDir(), "ledger.db")
	config := &Config{Ledger: LedgerConfig{Path: path}}

	// Tested code
	require.NoError(t, Migrate(context.Background(), config, discard))
	require.NoError(t, Migrate(context.Background(), config, discard))

	// Asserts
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Zero(t, count)
}

func TestBuilders(t *testing.T) {
	config, err := LoadConfig("", "")
	require.NoError(t, err)

	store := ledger.NewSqliteStore(filepath.Join(t.TempDir(), "ledger.db"))
	t.Cleanup(func() { _ = store.Close() })

	tests := []struct {
		build Builder
		name  string
		keys  []string
	}{
		{build: SensorPosition(), name: sensorposition.Name, keys: sensorposition.RoutingKeys},
		{build: MetadataCleaner("user-1", false), name: mdcleaner.Name, keys: mdcleaner.RoutingKeys},
		{build: Repairer("terra.custom"), name: repairer.Name, keys: repairer.RoutingKeys},
	}

	for _, tt := range tests {
		plugin, err := tt.build(context.Background(), config, store, discard)
		require.NoError(t, err, tt.name)

		assert.Equal(t, tt.name, plugin.Extractor.Name())
		assert.Equal(t, tt.keys, plugin.RoutingKeys)
		assert.NoError(t, plugin.Close())
	}
}

func TestOutputURL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "netcdf")

	got, err := outputURL(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "file://"))
	assert.DirExists(t, dir)

	nested := filepath.Join(t.TempDir(), "a", "b")
	got, err = outputURL("file://" + filepath.ToSlash(nested))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(nested), got)
	assert.DirExists(t, nested)

	got, err = outputURL("s3://bucket/prefix")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/prefix", got)
}
