package opendap

import (
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/parser"
)

// mergeWestEast concatenates two parsed slices side by side, west before
// east, row by row -- the flattened row-major arrays can't simply be
// appended because each row needs the east slice's columns appended after
// the west slice's columns, not after the whole west block.
func mergeWestEast(west, east parser.Result) (g model.Grid) {
	height := len(west.LatValues)
	widthW := len(west.LonValues)
	widthE := len(east.LonValues)

	lonValues := make([]float64, 0, widthW+widthE)
	lonValues = append(lonValues, west.LonValues...)
	lonValues = append(lonValues, east.LonValues...)

	g.LatValues = west.LatValues
	g.LonValues = lonValues
	g.U = mergeRows(west.U, east.U, height, widthW, widthE)
	g.V = mergeRows(west.V, east.V, height, widthW, widthE)
	g.Precip = mergeRows(west.Precip, east.Precip, height, widthW, widthE)
	return g
}

func mergeRows(west, east []float64, height, widthW, widthE int) []float64 {
	if len(west) == 0 && len(east) == 0 {
		return nil
	}
	out := make([]float64, height*(widthW+widthE))
	for r := 0; r < height; r++ {
		copy(out[r*(widthW+widthE):], west[r*widthW:(r+1)*widthW])
		copy(out[r*(widthW+widthE)+widthW:], east[r*widthE:(r+1)*widthE])
	}
	return out
}
