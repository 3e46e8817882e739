package grid

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

func sampleGrid() model.Grid {
	return model.Grid{
		LatValues: []float64{-1, 0, 1},
		LonValues: []float64{10, 11},
		U:         []float64{-5, -2.5, 0, 2.5, 5, 1},
		V:         []float64{1, 2, 3, 4, 5, 6},
	}
}

// TestEncodeWindPNG_ChannelRoundTrip checks that decoding each pixel's R/G
// channel back through the emitted Metadata stays within one quantization
// step of the source u/v value.
func TestEncodeWindPNG_ChannelRoundTrip(t *testing.T) {
	g := sampleGrid()
	e := NewPNGEncoder()

	buf, meta, err := e.EncodeWindPNG(g, "gfs", "2026-07-30")
	if err != nil {
		t.Fatalf("EncodeWindPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds().Dx() != g.Width() || img.Bounds().Dy() != g.Height() {
		t.Fatalf("dims=%dx%d want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), g.Width(), g.Height())
	}

	uTol := (meta.UMax - meta.UMin) / 255
	vTol := (meta.VMax - meta.VMin) / 255

	width := g.Width()
	for row := 0; row < g.Height(); row++ {
		for col := 0; col < width; col++ {
			r, gc, _, _ := img.At(col, row).RGBA()
			rByte := uint8(r >> 8)
			gByte := uint8(gc >> 8)

			uDecoded := meta.UMin + float64(rByte)/255*(meta.UMax-meta.UMin)
			vDecoded := meta.VMin + float64(gByte)/255*(meta.VMax-meta.VMin)

			idx := row*width + col
			if math.Abs(uDecoded-g.U[idx]) > uTol+1e-9 {
				t.Fatalf("u mismatch at (%d,%d): decoded=%v want~%v tol=%v", row, col, uDecoded, g.U[idx], uTol)
			}
			if math.Abs(vDecoded-g.V[idx]) > vTol+1e-9 {
				t.Fatalf("v mismatch at (%d,%d): decoded=%v want~%v tol=%v", row, col, vDecoded, g.V[idx], vTol)
			}
		}
	}

	if meta.Orientation != "south-up" {
		t.Fatalf("orientation=%q want south-up", meta.Orientation)
	}
}

func TestEncodeWindPNG_DegenerateRange_WritesZero(t *testing.T) {
	g := model.Grid{
		LatValues: []float64{0},
		LonValues: []float64{0, 1},
		U:         []float64{3, 3},
		V:         []float64{-2, -2},
	}
	e := NewPNGEncoder()
	buf, meta, err := e.EncodeWindPNG(g, "gfs", "2026-07-30")
	if err != nil {
		t.Fatalf("EncodeWindPNG: %v", err)
	}
	if meta.UMin != meta.UMax || meta.VMin != meta.VMax {
		t.Fatalf("expected degenerate ranges, got meta=%+v", meta)
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	r, gc, _, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != 0 || uint8(gc>>8) != 0 {
		t.Fatalf("expected R=G=0 for a degenerate range, got R=%d G=%d", r>>8, gc>>8)
	}
}

func TestNoOpEncoder_ReturnsEncoderUnavailable(t *testing.T) {
	var e Encoder = NoOpEncoder{}
	_, _, err := e.EncodeWindPNG(sampleGrid(), "gfs", "2026-07-30")
	if _, ok := err.(EncoderUnavailableError); !ok {
		t.Fatalf("expected EncoderUnavailableError, got %T: %v", err, err)
	}
}
