// Package grid turns a fetched model.Grid into the serializable payloads
// and the RGBA PNG the rest of the pipeline caches.
package grid

import (
	"errors"
	"time"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

// ErrGridMissingField is returned when a transform is asked to derive
// points from a field the fetched Grid never populated.
var ErrGridMissingField = errors.New("grid: required field not populated")

// WindParams carries the per-fetch identity fields that get stamped onto
// every WindPayload/PrecipitationPayload produced from a Grid.
type WindParams struct {
	RunName        string
	ForecastOffset int
	RunAge         int
	DataTime       time.Time
	HoursBack      int
	Source         string
	Resolution     float64
	Bounds         model.Bounds
	Region         string
}

// ToWindPayload builds a WindPayload from a wind Grid, deriving speed and
// direction per point. Returns ErrGridMissingField if g has no wind
// components.
func ToWindPayload(g model.Grid, p WindParams) (model.WindPayload, error) {
	if !g.HasWind() {
		return model.WindPayload{}, ErrGridMissingField
	}
	width, height := g.Width(), g.Height()
	points := make([]model.PointRecord, 0, width*height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			points = append(points, model.NewWindPoint(g.LatValues[row], g.LonValues[col], g.U[idx], g.V[idx]))
		}
	}
	return model.WindPayload{
		Timestamp:      time.Now().UTC(),
		RunName:        p.RunName,
		ForecastOffset: p.ForecastOffset,
		RunAge:         p.RunAge,
		DataTime:       p.DataTime,
		HoursBack:      p.HoursBack,
		Source:         p.Source,
		Resolution:     p.Resolution,
		Bounds:         p.Bounds,
		Points:         points,
		Region:         p.Region,
	}, nil
}

// ToPrecipPayload builds a PrecipitationPayload from a precip Grid.
// Returns ErrGridMissingField if g has no precipitation field.
func ToPrecipPayload(g model.Grid, p WindParams, unit string) (model.PrecipitationPayload, error) {
	if !g.HasPrecip() {
		return model.PrecipitationPayload{}, ErrGridMissingField
	}
	width, height := g.Width(), g.Height()
	points := make([]model.PointRecord, 0, width*height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			points = append(points, model.NewPrecipPoint(g.LatValues[row], g.LonValues[col], g.Precip[idx]))
		}
	}
	return model.PrecipitationPayload{
		Timestamp:      time.Now().UTC(),
		RunName:        p.RunName,
		ForecastOffset: p.ForecastOffset,
		RunAge:         p.RunAge,
		DataTime:       p.DataTime,
		HoursBack:      p.HoursBack,
		Source:         p.Source,
		Resolution:     p.Resolution,
		Bounds:         p.Bounds,
		Points:         points,
		Region:         p.Region,
		Unit:           unit,
	}, nil
}
