package extractor

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSensorID is the platform sensor the gantry streams belong to
const DefaultSensorID = "2"

// DefaultSitesRoot is the platform directory of the field site
const DefaultSitesRoot = "/home/clowder/sites/ua-mac"

// DefaultMountedPaths maps the platform file store onto the extractor host
var DefaultMountedPaths = map[string]string{
	"/home/clowder/sites": "/home/extractor/sites",
}

// DefaultGeostreamMap holds the known stream of each gantry sensor
var DefaultGeostreamMap = map[string]string{
	"stereoTop":    "3",
	"flirIrCamera": "6",
	"co2Sensor":    "2",
	"cropCircle":   "1",
	"priSensor":    "5",
	"scanner3DTop": "8",
	"ndviSensor":   "7",
	"ps2Top":       "10",
	"SWIR":         "9",
	"VNIR":         "4",
}

// Config is shared by all extractors
type Config struct {
	// Name is the registered extractor name, also the queue name
	Name string

	// Host and Key are used when a message does not carry them
	Host string
	Key  string

	// MountedPaths maps platform path prefixes to local ones
	MountedPaths map[string]string

	// GeostreamMap maps sensor names to stream identifiers
	GeostreamMap map[string]string
	SensorID     string

	// SitesRoot is the platform directory gantry data is ingested from
	SitesRoot string

	// TempDir receives downloaded files; the system default when empty
	TempDir string

	// SkipCompleted ignores resources the extractor already succeeded on
	SkipCompleted bool
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.MountedPaths == nil {
		c.MountedPaths = DefaultMountedPaths
	}
	if c.GeostreamMap == nil {
		c.GeostreamMap = DefaultGeostreamMap
	}
	if c.SensorID == "" {
		c.SensorID = DefaultSensorID
	}
	if c.SitesRoot == "" {
		c.SitesRoot = DefaultSitesRoot
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("extractor.Config: name is required")
	}
	return nil
}

// StreamID returns the configured stream of a sensor
func (c *Config) StreamID(sensor string) (string, bool) {
	id, ok := c.GeostreamMap[sensor]
	return id, ok && id != ""
}

// RemapMountPath translates a platform path into a local one using the
// longest matching prefix. The path is returned unchanged when nothing matches.
func (c *Config) RemapMountPath(path string) (string, bool) {
	prefixes := make([]string, 0, len(c.MountedPaths))
	for prefix := range c.MountedPaths {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		p := strings.TrimRight(prefix, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return filepath.Join(c.MountedPaths[prefix], strings.TrimPrefix(path, p)), true
		}
	}
	return path, false
}

// SourceDir returns the local directory a gantry dataset was ingested from.
// Scanner datasets are registered from their Level_1 products.
func (c *Config) SourceDir(name DatasetName) string {
	level := "raw_data"
	if name.Sensor == "scanner3DTop" {
		level = "Level_1"
	}
	dir := filepath.Join(c.SitesRoot, level, name.Sensor, name.Date, name.Timestamp)
	local, _ := c.RemapMountPath(dir)
	return local
}
