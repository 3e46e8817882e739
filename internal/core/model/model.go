// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
	"time"
)

// Base cache keys shared by the scheduler, cache store, and HTTP facade.
const (
	WindPointsKey          = "wind:points"
	WindPNGKey             = "wind:png"
	WindMetadataKey        = "wind:metadata"
	WindLastUpdateKey      = "wind:last_update"
	PrecipitationPointsKey = "precipitation:points"
)

// Bounds is the lat/lon rectangle a Grid was fetched for.
type Bounds struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// String matches the OpenDAP-ish "lat0,lat1,lon0,lon1" convention used in logs.
func (b Bounds) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.LatMin, b.LatMax, b.LonMin, b.LonMax)
}

// Grid is a rectangular lat/lon sample of a scalar/vector field at one
// forecast time. U, V, and Precip are row-major, height*width long, and
// optional depending on which OpenDAP variables were requested.
type Grid struct {
	LatValues []float64
	LonValues []float64
	U         []float64
	V         []float64
	Precip    []float64
}

func (g Grid) Width() int  { return len(g.LonValues) }
func (g Grid) Height() int { return len(g.LatValues) }

// HasWind reports whether both wind components were populated.
func (g Grid) HasWind() bool { return len(g.U) > 0 && len(g.V) > 0 }

// HasPrecip reports whether the precipitation field was populated.
func (g Grid) HasPrecip() bool { return len(g.Precip) > 0 }

// PointRecord is one sample with derived quantities. Direction is the
// math-angle convention (atan2(v,u)*180/pi, 0deg = due east, counter-clockwise
// positive), not the meteorological "wind is coming from" convention.
type PointRecord struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	U         float64 `json:"u,omitempty"`
	V         float64 `json:"v,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Direction float64 `json:"direction,omitempty"`
	Gusts     float64 `json:"gusts"`
	Precip    float64 `json:"precip,omitempty"`
}

// NewWindPoint builds a PointRecord for a wind sample, rounding fields to
// the precision the wire format expects.
func NewWindPoint(lat, lon, u, v float64) PointRecord {
	speed := math.Sqrt(u*u + v*v)
	dir := math.Atan2(v, u) * 180 / math.Pi
	return PointRecord{
		Lat:       round(lat, 2),
		Lon:       round(lon, 2),
		U:         round(u, 2),
		V:         round(v, 2),
		Speed:     round(speed, 1),
		Direction: math.Round(dir),
		Gusts:     0,
	}
}

// NewPrecipPoint builds a PointRecord for a precipitation sample (mm/3h).
func NewPrecipPoint(lat, lon, precip float64) PointRecord {
	return PointRecord{
		Lat:    round(lat, 2),
		Lon:    round(lon, 2),
		Precip: round(precip, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// WindPayload is the serializable artifact stored under the wind:points
// base key.
type WindPayload struct {
	Timestamp      time.Time     `json:"timestamp"`
	RunName        string        `json:"run_name"`
	ForecastOffset int           `json:"forecast_offset"`
	RunAge         int           `json:"run_age"`
	DataTime       time.Time     `json:"data_time"`
	HoursBack      int           `json:"hours_back"`
	Source         string        `json:"source"`
	Resolution     float64       `json:"resolution"`
	Bounds         Bounds        `json:"bounds"`
	Points         []PointRecord `json:"points"`
	Region         string        `json:"region"`
}

// CachePoints returns the payload's point array for the cache store's
// chunk/meta split.
func (p WindPayload) CachePoints() []PointRecord { return p.Points }

// WithoutCachePoints returns a copy of the payload with Points cleared, for
// the store's :meta blob.
func (p WindPayload) WithoutCachePoints() any {
	p.Points = nil
	return p
}

// PrecipitationPayload is analogous to WindPayload but carries precip-only
// points and an explicit unit.
type PrecipitationPayload struct {
	Timestamp      time.Time     `json:"timestamp"`
	RunName        string        `json:"run_name"`
	ForecastOffset int           `json:"forecast_offset"`
	RunAge         int           `json:"run_age"`
	DataTime       time.Time     `json:"data_time"`
	HoursBack      int           `json:"hours_back"`
	Source         string        `json:"source"`
	Resolution     float64       `json:"resolution"`
	Bounds         Bounds        `json:"bounds"`
	Points         []PointRecord `json:"points"`
	Region         string        `json:"region"`
	Unit           string        `json:"unit"`
}

// CachePoints returns the payload's point array for the cache store's
// chunk/meta split.
func (p PrecipitationPayload) CachePoints() []PointRecord { return p.Points }

// WithoutCachePoints returns a copy of the payload with Points cleared, for
// the store's :meta blob.
func (p PrecipitationPayload) WithoutCachePoints() any {
	p.Points = nil
	return p
}

// Metadata describes a PNG's channel normalization so a consumer can
// denormalize R/G back into m/s.
type Metadata struct {
	Source      string  `json:"source"`
	Date        string  `json:"date"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	UMin        float64 `json:"u_min"`
	UMax        float64 `json:"u_max"`
	VMin        float64 `json:"v_min"`
	VMax        float64 `json:"v_max"`
	Orientation string  `json:"orientation"`
	Tiles       []string `json:"tiles,omitempty"`
	Index       *int     `json:"index,omitempty"`
}

// IndexEntry is one element of a base key's indices list.
type IndexEntry struct {
	Index          int       `json:"index"`
	Timestamp      time.Time `json:"timestamp"`
	DataPoints     int       `json:"data_points"`
	RunName        string    `json:"run_name"`
	DataTime       time.Time `json:"data_time"`
	HoursBack      int       `json:"hours_back"`
	ForecastOffset int       `json:"forecast_offset"`
	RunAge         int       `json:"run_age"`
}

// Identity is the (run_name, forecast_offset) pair that uniquely identifies
// an upstream dataset slice -- the idempotence key for scheduler writes.
type Identity struct {
	RunName        string
	ForecastOffset int
}

// FetchSummary backs the wind:last_update key (written after each backfill)
// and the /api/wind-status endpoint.
type FetchSummary struct {
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
	SuccessCount int       `json:"successCount,omitempty"`
	FailureCount int       `json:"failureCount,omitempty"`
}

// RefreshEvent is published by the event notifier after a successful
// versioned write.
type RefreshEvent struct {
	BaseKey        string    `json:"base_key"`
	Index          int       `json:"index"`
	RunName        string    `json:"run_name"`
	ForecastOffset int       `json:"forecast_offset"`
	RunAge         int       `json:"run_age"`
	Timestamp      time.Time `json:"timestamp"`
}
