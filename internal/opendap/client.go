// Package opendap issues HTTP GETs to the NOAA OpenDAP ".ascii" endpoint
// and assembles the global 0.5-degree GFS grid, including the
// longitude-wraparound split fetch required for requests crossing the
// antimeridian of the dataset's 0..359.5 longitude axis.
package opendap

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
	"github.com/mwinters/gfs-windcache/internal/parser"
)

const fetchTimeout = 30 * time.Second

var (
	windVars   = []string{"ugrd10m", "vgrd10m"}
	precipVars = []string{"apcpsfc"}
)

type Client struct {
	hc      *http.Client
	baseURL string
	log     *zerolog.Logger
}

func New(hc *http.Client, baseURL string, log *zerolog.Logger) *Client {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Client{hc: hc, baseURL: baseURL, log: log}
}

// FetchASCII GETs url and returns the decoded body, or a typed
// UpstreamHTTPError / UpstreamNotReadyError.
func (c *Client) FetchASCII(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("opendap: build request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveUpstreamFetch("opendap", err, time.Since(start).Seconds())
		return "", fmt.Errorf("opendap: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.ObserveUpstreamFetch("opendap", err, time.Since(start).Seconds())
		return "", fmt.Errorf("opendap: read body from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &UpstreamHTTPError{Status: resp.StatusCode, URL: url}
		observability.ObserveUpstreamFetch("opendap", err, time.Since(start).Seconds())
		return "", err
	}

	text := string(body)
	if looksLikeHTML(text) {
		err := notReadyError(text)
		observability.ObserveUpstreamFetch("opendap", err, time.Since(start).Seconds())
		return "", err
	}

	observability.ObserveUpstreamFetch("opendap", nil, time.Since(start).Seconds())
	return text, nil
}

// FetchWind fetches the 10m u/v wind components over the given bounds at
// one forecast time.
func (c *Client) FetchWind(ctx context.Context, date, cycle string, forecastOffset int, bounds model.Bounds) (model.Grid, error) {
	return c.fetchGrid(ctx, date, cycle, forecastOffset, bounds, windVars)
}

// FetchPrecip fetches the 3-hour accumulated precipitation field over the
// given bounds at one forecast time.
func (c *Client) FetchPrecip(ctx context.Context, date, cycle string, forecastOffset int, bounds model.Bounds) (model.Grid, error) {
	return c.fetchGrid(ctx, date, cycle, forecastOffset, bounds, precipVars)
}

func (c *Client) fetchGrid(
	ctx context.Context,
	date, cycle string,
	forecastOffset int,
	bounds model.Bounds,
	vars []string,
) (model.Grid, error) {
	datasetURL := DatasetURL(c.baseURL, date, cycle)
	t := forecastOffset / 3

	la0 := latIndex(bounds.LatMin)
	la1 := latIndex(bounds.LatMax)

	if bounds.LonMin < 0 {
		return c.fetchWrapped(ctx, datasetURL, t, la0, la1, bounds, vars)
	}

	lo0 := lonIndex(bounds.LonMin)
	lo1 := lonIndex(bounds.LonMax)
	constraint := buildConstraint(vars, t, la0, la1, lo0, lo1)

	text, err := c.FetchASCII(ctx, datasetURL+".ascii?"+constraint)
	if err != nil {
		return model.Grid{}, err
	}
	res, err := parser.Parse(text)
	if err != nil {
		return model.Grid{}, err
	}
	return res.ToGrid(), nil
}

// fetchWrapped implements the longitude-wraparound split fetch: a western
// slice covering indices (360+lon_min)/0.5..719 (longitudes rewritten as
// lon-360), and an eastern slice covering 0..lon_max/0.5, concatenated
// west-then-east per latitude row.
func (c *Client) fetchWrapped(
	ctx context.Context,
	datasetURL string,
	t, la0, la1 int,
	bounds model.Bounds,
	vars []string,
) (model.Grid, error) {
	westLo0 := lonIndex(360 + bounds.LonMin)
	westLo1 := 719
	eastLo0 := 0
	eastLo1 := lonIndex(bounds.LonMax)

	westConstraint := buildConstraint(vars, t, la0, la1, westLo0, westLo1)
	westText, err := c.FetchASCII(ctx, datasetURL+".ascii?"+westConstraint)
	if err != nil {
		return model.Grid{}, err
	}
	west, err := parser.Parse(westText)
	if err != nil {
		return model.Grid{}, err
	}
	for i := range west.LonValues {
		west.LonValues[i] -= 360
	}

	eastConstraint := buildConstraint(vars, t, la0, la1, eastLo0, eastLo1)
	eastText, err := c.FetchASCII(ctx, datasetURL+".ascii?"+eastConstraint)
	if err != nil {
		return model.Grid{}, err
	}
	east, err := parser.Parse(eastText)
	if err != nil {
		return model.Grid{}, err
	}

	return mergeWestEast(west, east), nil
}

func latIndex(lat float64) int { return int(math.Round((lat + 90) / 0.5)) }
func lonIndex(lon float64) int { return int(math.Round(lon / 0.5)) }

// buildConstraint renders "VAR[t:1:t][la0:1:la1][lo0:1:lo1],...,lat[...],lon[...]",
// OpenDAP's hyperslab constraint syntax.
func buildConstraint(vars []string, t, la0, la1, lo0, lo1 int) string {
	out := ""
	for _, v := range vars {
		out += fmt.Sprintf("%s[%d:1:%d][%d:1:%d][%d:1:%d],", v, t, t, la0, la1, lo0, lo1)
	}
	out += fmt.Sprintf("lat[%d:1:%d],lon[%d:1:%d]", la0, la1, lo0, lo1)
	return out
}
