package parser

import "github.com/mwinters/gfs-windcache/internal/core/model"

// Result is the tokenizer's output: the lat/lon axes plus whichever
// variable arrays appeared in the payload.
type Result struct {
	LatValues []float64
	LonValues []float64
	U         []float64
	V         []float64
	Precip    []float64
}

func (r Result) ToGrid() model.Grid {
	return model.Grid{
		LatValues: r.LatValues,
		LonValues: r.LonValues,
		U:         r.U,
		V:         r.V,
		Precip:    r.Precip,
	}
}
