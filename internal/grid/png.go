package grid

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

// Encoder produces an RGBA PNG of a wind Grid's u/v channels and the
// Metadata a consumer needs to denormalize them. It is abstracted behind
// an interface so it can be swapped for a NoOpEncoder (DISABLE_PNG_ENCODER,
// tests) without touching callers -- PNG is an optional artifact, the
// point-level JSON is written regardless of whether this succeeds.
type Encoder interface {
	EncodeWindPNG(g model.Grid, source, date string) ([]byte, model.Metadata, error)
}

// PNGEncoder is the stdlib image/png-backed implementation, grounded on
// the corpus's own radar/WMS code which reaches for image/png directly
// rather than a third-party imaging library.
type PNGEncoder struct{}

func NewPNGEncoder() *PNGEncoder { return &PNGEncoder{} }

// EncodeWindPNG computes u_min/u_max/v_min/v_max over g, then writes one
// RGBA pixel per sample in row-major order: R encodes u, G encodes v, B is
// always 0, A is always 255. Row 0 corresponds to lat_values[0], i.e. the
// image is south-up when lat_values ascends from the southern edge of the
// fetched bounds, which Metadata.Orientation documents explicitly.
func (e *PNGEncoder) EncodeWindPNG(g model.Grid, source, date string) ([]byte, model.Metadata, error) {
	if !g.HasWind() {
		return nil, model.Metadata{}, EncoderUnavailableError{}
	}

	width, height := g.Width(), g.Height()
	uMin, uMax := minMax(g.U)
	vMin, vMax := minMax(g.V)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			r := normalizeChannel(g.U[idx], uMin, uMax)
			gc := normalizeChannel(g.V[idx], vMin, vMax)
			img.SetRGBA(col, row, color.RGBA{R: r, G: gc, B: 0, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, model.Metadata{}, fmt.Errorf("grid: encode png: %w", err)
	}

	meta := model.Metadata{
		Source:      source,
		Date:        date,
		Width:       width,
		Height:      height,
		UMin:        uMin,
		UMax:        uMax,
		VMin:        vMin,
		VMax:        vMax,
		Orientation: "south-up",
	}
	return buf.Bytes(), meta, nil
}

// NoOpEncoder always reports EncoderUnavailableError -- used for
// DISABLE_PNG_ENCODER and tests that don't need image bytes.
type NoOpEncoder struct{}

func (NoOpEncoder) EncodeWindPNG(model.Grid, string, string) ([]byte, model.Metadata, error) {
	return nil, model.Metadata{}, EncoderUnavailableError{}
}

func minMax(vals []float64) (min, max float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// normalizeChannel maps v linearly onto 0..255 given the sample's min/max,
// writing 0 for a degenerate (min == max) range.
func normalizeChannel(v, min, max float64) uint8 {
	if max == min {
		return 0
	}
	n := math.Round(255 * (v - min) / (max - min))
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	return uint8(n)
}
