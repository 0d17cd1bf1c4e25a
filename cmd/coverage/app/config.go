package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultScale = 10.0
	maxScale     = 1000.0
)

type ImageFormat string

type Config struct {
	DBPath        string
	Sensor        string
	OutputFile    string
	Format        ImageFormat
	Scale         float64 // pixels per meter
	Theme         ColorTheme
	StartTime     *time.Time
	EndTime       *time.Time
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Scale:  defaultScale,
		Theme:  ClassicTheme,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return newConfigFromArgs(os.Args[0], os.Args[1:], os.Stderr)
}

func newConfigFromArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme, start, end string
	fs.StringVar(&c.DBPath, "db", "", "Path to the ledger database file")
	fs.StringVar(&c.Sensor, "sensor", "", "Sensor name, e.g. stereoTop")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.Float64Var(&c.Scale, "scale", defaultScale, "Pixels per meter")
	fs.StringVar(&theme, "theme", string(ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.StringVar(&start, "start", "", "Only footprints captured at or after this time (RFC3339)")
	fs.StringVar(&end, "end", "", "Only footprints captured at or before this time (RFC3339)")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as scales and the info bar")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.Sensor == "" {
		err = errors.New("sensor is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Scale <= 0 || c.Scale > maxScale {
		err = fmt.Errorf("scale must be in (0, %g] pixels per meter", maxScale)
	} else if _, ok := colorThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.StartTime, err = parseTime("start", start); err == nil {
		c.EndTime, err = parseTime("end", end)
	}
	if err == nil && c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		err = errors.New("end must not be before start")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTime(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return &t, nil
}
