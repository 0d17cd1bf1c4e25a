package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 10.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 60
	defaultRightBorder  = 40

	defaultDatetimeFormat = time.DateTime
)

var (
	backgroundColor = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	outlineColor    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x60}
)

// BorderConfig defines the sizes of white space around the map
type BorderConfig struct {
	Top    int // Space for easting scale
	Left   int // Space for northing scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for coverage visualization
type RenderConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	ColorTheme     ColorTheme
	NoAnnotations  bool
	BorderConfig   BorderConfig
}

// CoverageRenderer draws sensor footprints on a map
type CoverageRenderer struct {
	config RenderConfig
}

func NewCoverageRenderer(config RenderConfig) *CoverageRenderer {
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}
	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	}

	return &CoverageRenderer{config: config}
}

// Render creates an image of the coverage map with annotations
func (r *CoverageRenderer) Render(m *CoverageMap) (*image.RGBA, error) {
	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, m.Width+b.Left+b.Right, m.Height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+m.Width, b.Top+m.Height)
	draw.Draw(img, area, image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	r.renderFootprints(img, area, m)

	if r.config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        b,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, m); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// renderFootprints fills every footprint, later captures on top
func (r *CoverageRenderer) renderFootprints(img *image.RGBA, area image.Rectangle, m *CoverageMap) {
	colors := NewColorMapper(r.config.ColorTheme, len(m.Footprints))

	for i, fp := range m.Footprints {
		x0, y0 := m.Pixel(fp.LeftTop())
		x1, y1 := m.Pixel(fp.RightBottom())
		rect := image.Rect(x0, y0, x1+1, y1+1).Add(area.Min).Intersect(area)
		if rect.Empty() {
			continue
		}

		draw.Draw(img, rect, image.NewUniform(colors.GetColor(i)), image.Point{}, draw.Over)
		drawOutline(img, rect, outlineColor)
	}
}

func drawOutline(img *image.RGBA, rect image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	for _, edge := range []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1),
		image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+1, rect.Min.X+1, rect.Max.Y-1),
		image.Rect(rect.Max.X-1, rect.Min.Y+1, rect.Max.X, rect.Max.Y-1),
	} {
		draw.Draw(img, edge, src, image.Point{}, draw.Over)
	}
}

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, m *CoverageMap) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawEastingScale(img, m); err != nil {
		return fmt.Errorf("drawing easting scale: %w", err)
	}
	if err := a.drawNorthingScale(img, m); err != nil {
		return fmt.Errorf("drawing northing scale: %w", err)
	}
	if err := a.drawInfoBar(img, m); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

// drawEastingScale labels the distance from the west edge of the map
func (a *annotator) drawEastingScale(img *image.RGBA, m *CoverageMap) error {
	step := calculateNiceDistanceStep(m.Bound.Width(), m.Width)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	for d := 0.0; d <= m.Bound.Width(); d += step {
		x := a.config.Borders.Left + int(math.Round(d*m.Scale))

		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatDistance(d)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-(width.Round()/2), textY)); err != nil {
			return fmt.Errorf("drawing easting label: %w", err)
		}
	}
	return nil
}

// drawNorthingScale labels the distance from the north edge of the map
func (a *annotator) drawNorthingScale(img *image.RGBA, m *CoverageMap) error {
	step := calculateNiceDistanceStep(m.Bound.Height(), m.Height)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for d := 0.0; d <= m.Bound.Height(); d += step {
		y := a.config.Borders.Top + int(math.Round(d*m.Scale))

		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(formatDistance(d), freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing northing label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, m *CoverageMap) error {
	var first strings.Builder
	first.WriteString(fmt.Sprintf("Sensor: %s; Footprints: %s", m.Sensor, humanize.Comma(int64(len(m.Footprints)))))
	if m.Skipped > 0 {
		first.WriteString(fmt.Sprintf(" (%s outside zone)", humanize.Comma(int64(m.Skipped))))
	}
	first.WriteString(fmt.Sprintf("; Zone: %d%c", m.ZoneNumber, m.ZoneLetter))
	first.WriteString(fmt.Sprintf("; Extent: %s x %s", formatDistance(m.Bound.Width()), formatDistance(m.Bound.Height())))
	first.WriteString(fmt.Sprintf("; Area: %s m²", humanize.CommafWithDigits(m.Area, 1)))

	var second strings.Builder
	if m.CaptureStart != nil && m.CaptureEnd != nil {
		second.WriteString(fmt.Sprintf("Time: %s - %s; ",
			m.CaptureStart.In(a.config.Location).Format(a.config.DatetimeFormat),
			m.CaptureEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	}
	second.WriteString(fmt.Sprintf("1px = %s", formatDistance(1/m.Scale)))

	metrics := a.fontFace.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - a.config.Borders.Bottom + lineHeight + 4

	for _, line := range []string{first.String(), second.String()} {
		if _, err := a.context.DrawString(line, freetype.Pt(a.config.Borders.Left, textY)); err != nil {
			return fmt.Errorf("drawing info text: %w", err)
		}
		textY += lineHeight + 4
	}

	return nil
}

// Helper functions

func calculateNiceDistanceStep(span float64, pixels int) float64 {
	if span <= 0 || pixels <= 0 {
		return 1
	}

	desiredSteps := math.Max(1, float64(pixels)/pixelsPerLabel)
	target := span / desiredSteps

	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, mult := range []float64{1, 2, 5, 10} {
		if step := mult * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}

func formatDistance(meters float64) string {
	switch {
	case meters >= 1000:
		return fmt.Sprintf("%.2f km", meters/1000)
	case meters >= 1:
		return fmt.Sprintf("%.1f m", meters)
	default:
		return fmt.Sprintf("%.0f cm", meters*100)
	}
}
