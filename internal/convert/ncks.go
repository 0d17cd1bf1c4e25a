package convert

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const NCKSRuntime = "ncks"

// Format is a textual rendering ncks can produce of a netCDF header
type Format string

const (
	FormatCDL  Format = "cdl"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// Formats lists the renderings in the order they are produced
var Formats = []Format{FormatCDL, FormatXML, FormatJSON}

// Extension returns the output file extension, including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type of the rendering
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}

func (f Format) flag() (string, error) {
	switch f {
	case FormatCDL:
		return "--cdl", nil
	case FormatXML:
		return "--xml", nil
	case FormatJSON:
		return "--jsn", nil
	default:
		return "", NewConfigError(fmt.Sprintf("ncks: unsupported format %q", string(f)))
	}
}

// ParseFormat parses a format name, case-insensitively
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, err := f.flag(); err != nil {
		return "", err
	}
	return f, nil
}

/*
	ncks --cdl -m -M input.nc
	ncks --xml -m -M input.nc
	ncks --jsn -m -M input.nc
*/

// NCKSConfig configures a header dump with `ncks`
type NCKSConfig struct {
	Format Format `yaml:"format" json:"format"`

	// MetadataOnly prints variable metadata without data (-m)
	MetadataOnly bool `yaml:"metadataOnly" json:"metadataOnly"`

	// GlobalMetadata prints global metadata (-M)
	GlobalMetadata bool `yaml:"globalMetadata" json:"globalMetadata"`
}

// HeaderDump is the configuration that prints the full header and no data
func HeaderDump(f Format) NCKSConfig {
	return NCKSConfig{Format: f, MetadataOnly: true, GlobalMetadata: true}
}

func (c *NCKSConfig) Validate() error {
	_, err := c.Format.flag()
	return err
}

// Args builds the command line arguments for `ncks`
func (c *NCKSConfig) Args(input string) ([]string, error) {
	if input == "" {
		return nil, NewConfigError("ncks: input file is required")
	}

	flag, err := c.Format.flag()
	if err != nil {
		return nil, err
	}

	args := []string{flag}
	if c.MetadataOnly {
		args = append(args, "-m")
	}
	if c.GlobalMetadata {
		args = append(args, "-M")
	}

	return append(args, input), nil
}

// Dump renders the header of a netCDF file into w
func (r *Runner) Dump(ctx context.Context, w io.Writer, input string, c NCKSConfig) error {
	args, err := c.Args(input)
	if err != nil {
		return fmt.Errorf("error creating args: %w", err)
	}
	return r.Run(ctx, w, args...)
}
