package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
	"github.com/roman-kulish/gantry-extractors/internal/position"
)

const (
	defaultLogLevel      = "INFO"
	defaultLedgerPath    = "ledger.db"
	defaultRetryDelay    = 5 * time.Second
	defaultMaxRetryDelay = 5 * time.Minute
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Clowder   ClowderConfig   `yaml:"clowder"`
	Broker    BrokerConfig    `yaml:"broker"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Position  PositionConfig  `yaml:"position"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel   string `yaml:"logLevel"`
	StatusAddr string `yaml:"statusAddr"`
}

// ClowderConfig is the platform the extractors talk to
type ClowderConfig struct {
	Host     string       `yaml:"host"`
	Key      string       `yaml:"key"`
	User     string       `yaml:"user"`
	Password string       `yaml:"password"`
	Timeout  TimeDuration `yaml:"timeout"`
}

// BrokerConfig is where extraction events are consumed from
type BrokerConfig struct {
	URI           string       `yaml:"uri"`
	Exchange      string       `yaml:"exchange"`
	Queue         string       `yaml:"queue"`
	Workers       int          `yaml:"workers"`
	RetryDelay    TimeDuration `yaml:"retryDelay"`
	MaxRetryDelay TimeDuration `yaml:"maxRetryDelay"`
}

// ExtractorConfig is shared by all extractors
type ExtractorConfig struct {
	MountedPaths  map[string]string `yaml:"mountedPaths"`
	GeostreamMap  map[string]string `yaml:"geostreamMap"`
	SensorID      string            `yaml:"sensorId"`
	SitesRoot     string            `yaml:"sitesRoot"`
	TempDir       string            `yaml:"tempDir"`
	SkipCompleted bool              `yaml:"skipCompleted"`
}

// PositionConfig controls how gantry poses are read and placed. A zero
// reference falls back to position.DefaultReference.
type PositionConfig struct {
	AcceptZero bool    `yaml:"acceptZero"`
	Latitude   float64 `yaml:"latitude"`
	Longitude  float64 `yaml:"longitude"`
	OffsetX    float64 `yaml:"offsetX"`
	OffsetY    float64 `yaml:"offsetY"`
}

// LedgerConfig represents the run ledger settings
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// LoadConfig reads the optional env file and the optional YAML file, then
// applies environment overrides. An empty envFile loads ".env" if it exists.
func LoadConfig(path, envFile string) (*Config, error) {
	if err := loadEnv(envFile); err != nil {
		return nil, err
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err = yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func loadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"LOG_LEVEL":         &c.Settings.LogLevel,
		"STATUS_ADDR":       &c.Settings.StatusAddr,
		"CLOWDER_HOST":      &c.Clowder.Host,
		"CLOWDER_KEY":       &c.Clowder.Key,
		"CLOWDER_USER":      &c.Clowder.User,
		"CLOWDER_PASSWORD":  &c.Clowder.Password,
		"RABBITMQ_URI":      &c.Broker.URI,
		"RABBITMQ_EXCHANGE": &c.Broker.Exchange,
		"RABBITMQ_QUEUE":    &c.Broker.Queue,
		"LEDGER_PATH":       &c.Ledger.Path,
	}
	for name, field := range overrides {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}

	if v, ok := os.LookupEnv("POSITION_ACCEPT_ZERO"); ok {
		accept, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("POSITION_ACCEPT_ZERO: %w", err)
		}
		c.Position.AcceptZero = accept
	}

	if v, ok := os.LookupEnv("RABBITMQ_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RABBITMQ_WORKERS: %w", err)
		}
		c.Broker.Workers = n
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaultLogLevel
	}
	if c.Clowder.Timeout == 0 {
		c.Clowder.Timeout = NewTimeDuration(clowder.DefaultTimeout)
	}
	if c.Broker.URI == "" {
		c.Broker.URI = bus.DefaultURI
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = bus.DefaultExchange
	}
	if c.Broker.Workers < 1 {
		c.Broker.Workers = bus.DefaultWorkers
	}
	if c.Broker.RetryDelay == 0 {
		c.Broker.RetryDelay = NewTimeDuration(defaultRetryDelay)
	}
	if c.Broker.MaxRetryDelay == 0 {
		c.Broker.MaxRetryDelay = NewTimeDuration(defaultMaxRetryDelay)
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Position.Latitude == 0 && c.Position.Longitude == 0 {
		ref := position.DefaultReference
		c.Position.Latitude, c.Position.Longitude = ref.Latitude, ref.Longitude
		c.Position.OffsetX, c.Position.OffsetY = ref.OffsetX, ref.OffsetY
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := c.Clowder.Timeout.Validate(); err != nil {
		return fmt.Errorf("clowder.timeout: %w", err)
	}
	if err := c.Broker.RetryDelay.Validate(); err != nil {
		return fmt.Errorf("broker.retryDelay: %w", err)
	}
	if err := c.Broker.MaxRetryDelay.Validate(); err != nil {
		return fmt.Errorf("broker.maxRetryDelay: %w", err)
	}
	if c.Broker.MaxRetryDelay < c.Broker.RetryDelay {
		return errors.New("broker.maxRetryDelay must not be less than broker.retryDelay")
	}
	if c.Position.Latitude < -80 || c.Position.Latitude > 84 {
		return fmt.Errorf("position.latitude %f is outside the UTM range", c.Position.Latitude)
	}
	if c.Position.Longitude < -180 || c.Position.Longitude > 180 {
		return fmt.Errorf("position.longitude %f is out of range", c.Position.Longitude)
	}
	if (c.Clowder.User == "") != (c.Clowder.Password == "") {
		return errors.New("clowder.user and clowder.password must be set together")
	}
	return nil
}

// ExtractorConfig returns the shared extractor configuration for name
func (c *Config) ExtractorConfig(name string) extractor.Config {
	return extractor.Config{
		Name:          name,
		Host:          c.Clowder.Host,
		Key:           c.Clowder.Key,
		MountedPaths:  c.Extractor.MountedPaths,
		GeostreamMap:  c.Extractor.GeostreamMap,
		SensorID:      c.Extractor.SensorID,
		SitesRoot:     c.Extractor.SitesRoot,
		TempDir:       c.Extractor.TempDir,
		SkipCompleted: c.Extractor.SkipCompleted,
	}
}

// Resolver returns the metadata resolver. Zero values count as missing unless
// position.acceptZero is set.
func (c *Config) Resolver() position.Resolver {
	return position.Resolver{ZeroIsMissing: !c.Position.AcceptZero}
}

// Reference returns the gantry reference corner
func (c *Config) Reference() position.Reference {
	return position.Reference{
		Latitude:  c.Position.Latitude,
		Longitude: c.Position.Longitude,
		OffsetX:   c.Position.OffsetX,
		OffsetY:   c.Position.OffsetY,
	}
}

// BusConfig returns the consumer configuration for an extractor. The queue
// defaults to the extractor name.
func (c *Config) BusConfig(name string, routingKeys []string) bus.Config {
	queue := c.Broker.Queue
	if queue == "" {
		queue = name
	}
	return bus.Config{
		URI:         c.Broker.URI,
		Exchange:    c.Broker.Exchange,
		Queue:       queue,
		RoutingKeys: routingKeys,
		Workers:     c.Broker.Workers,
	}
}
