// Package scheduler drives the fetch/encode/store pipeline: a one-shot
// historical backfill at startup followed by a steady-state poll of the
// current GFS run, sharing one idempotence guard between both modes and
// the manual-trigger HTTP endpoints.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwinters/gfs-windcache/internal/cache/dedupe"
	"github.com/mwinters/gfs-windcache/internal/cache/store"
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
	"github.com/mwinters/gfs-windcache/internal/grid"
	mylog "github.com/mwinters/gfs-windcache/internal/logger"
	"github.com/mwinters/gfs-windcache/internal/opendap"
)

// Fetcher is the OpenDAP surface the scheduler depends on. *opendap.Client
// satisfies it; tests substitute a fake.
type Fetcher interface {
	FetchWind(ctx context.Context, date, cycle string, forecastOffset int, bounds model.Bounds) (model.Grid, error)
	FetchPrecip(ctx context.Context, date, cycle string, forecastOffset int, bounds model.Bounds) (model.Grid, error)
}

// Notifier publishes a RefreshEvent after a successful versioned write. A
// publish failure is logged and never fails the fetch.
type Notifier interface {
	Publish(ctx context.Context, ev model.RefreshEvent) error
}

// NoopNotifier discards every event -- the default when no broker is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, model.RefreshEvent) error { return nil }

// Params configures a Scheduler. Source/Resolution/Region/Unit are stamped
// onto every payload; Bounds is the lat/lon rectangle fetched each run.
type Params struct {
	Bounds         model.Bounds
	Source         string
	Resolution     float64
	Region         string
	PrecipUnit     string
	MaxHistory     int
	BackfillSleep  time.Duration
	TickEvery      time.Duration
}

type Scheduler struct {
	fetcher  Fetcher
	store    *store.Store
	dedupe   *dedupe.Cache
	encoder  grid.Encoder
	notifier Notifier
	log      *zerolog.Logger
	params   Params

	running atomic.Bool
	ticking atomic.Bool
	status  statusBox
}

func New(fetcher Fetcher, st *store.Store, dd *dedupe.Cache, enc grid.Encoder, notifier Notifier, log *zerolog.Logger, params Params) *Scheduler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if params.MaxHistory <= 0 {
		params.MaxHistory = 20
	}
	if params.BackfillSleep <= 0 {
		params.BackfillSleep = time.Second
	}
	if params.TickEvery <= 0 {
		params.TickEvery = 5 * time.Minute
	}
	return &Scheduler{
		fetcher:  fetcher,
		store:    st,
		dedupe:   dd,
		encoder:  enc,
		notifier: notifier,
		log:      log,
		params:   params,
	}
}

// Run performs the historical backfill once, then ticks the steady-state
// latest-check every TickEvery until ctx is canceled. It is meant to be
// the scheduler's single long-lived goroutine; a second call is a no-op.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	s.FetchHistorical24h(ctx)

	ticker := time.NewTicker(s.params.TickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunLatestCheck(ctx)
		}
	}
}

// Running reports whether the scheduler's long-lived loop has started.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Status returns the running flag and the last fetch_single/backfill
// summary, for /api/wind-status.
func (s *Scheduler) Status() Status {
	return Status{Running: s.running.Load(), LastFetch: s.status.get()}
}

// FetchHistorical24h walks the 8 fixed backfill targets sequentially,
// sleeping BackfillSleep between fetches, skipping any target already
// present in wind:points' indices.
func (s *Scheduler) FetchHistorical24h(ctx context.Context) model.FetchSummary {
	var successCount, failureCount int
	for i, hoursBack := range backfillHoursBack {
		forecastOffset, runAge, ok := selectTarget(hoursBack)
		if !ok {
			failureCount++
			continue
		}
		if s.fetchSingle(ctx, forecastOffset, runAge, "backfill") {
			successCount++
		} else {
			failureCount++
		}
		if i == len(backfillHoursBack)-1 {
			break
		}
		select {
		case <-ctx.Done():
			summary := model.FetchSummary{Success: false, Timestamp: time.Now().UTC(), Error: ctx.Err().Error(), SuccessCount: successCount, FailureCount: failureCount}
			s.status.recordSummary(summary)
			return summary
		case <-time.After(s.params.BackfillSleep):
		}
	}
	summary := model.FetchSummary{
		Success:      failureCount == 0,
		Timestamp:    time.Now().UTC(),
		SuccessCount: successCount,
		FailureCount: failureCount,
	}
	s.status.recordSummary(summary)
	if err := s.store.SetJSON(ctx, model.WindLastUpdateKey, summary); err != nil {
		mylog.FromContext(ctx, s.log).Warn().Err(err).Msg("last_update summary write failed")
	}
	return summary
}

// RunLatestCheck invokes fetch_single(0, 0) for the current run. A tick
// that finds one already in flight is coalesced (dropped), matching the
// single-loop concurrency contract.
func (s *Scheduler) RunLatestCheck(ctx context.Context) bool {
	if !s.ticking.CompareAndSwap(false, true) {
		observability.IncSchedulerSkipped("latest")
		return false
	}
	defer s.ticking.Store(false)
	return s.fetchSingle(ctx, 0, 0, "latest")
}

// fetchSingle implements the 7-step fetch/encode/store sequence for one
// (forecastOffset, runAge) target: idempotence check, wind fetch + cache,
// PNG encode + cache, metadata, then an independent, swallow-on-failure
// precipitation fetch + cache.
func (s *Scheduler) fetchSingle(ctx context.Context, forecastOffset, runAge int, mode string) bool {
	hoursBack := runAge - forecastOffset
	date, cycle, runName := opendap.SelectRun(time.Now(), runAge)
	dataTime := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)
	id := model.Identity{RunName: runName, ForecastOffset: forecastOffset}
	isLatest := runAge == 0 && forecastOffset == 0

	ctx = mylog.WithRunName(ctx, runName)
	log := mylog.FromContext(ctx, s.log)

	if s.dedupe.Seen(model.WindPointsKey, id) {
		observability.IncSchedulerSkipped(mode)
		return true
	}
	exists, err := s.store.HasIdentity(ctx, model.WindPointsKey, id)
	if err != nil {
		log.Warn().Err(err).Msg("idempotence check failed, proceeding with fetch")
	} else if exists {
		s.dedupe.Mark(model.WindPointsKey, id)
		observability.IncSchedulerSkipped(mode)
		return true
	}

	windGrid, err := s.fetcher.FetchWind(ctx, date, cycle, forecastOffset, s.params.Bounds)
	if err != nil {
		log.Error().Err(err).Msg("wind fetch failed")
		s.status.recordFailure(err)
		observability.ObserveSchedulerRun(mode, false)
		return false
	}

	wp := WindParamsFor(s.params, runName, forecastOffset, runAge, dataTime, hoursBack)
	payload, err := grid.ToWindPayload(windGrid, wp)
	if err != nil {
		log.Error().Err(err).Msg("wind grid missing u/v components")
		s.status.recordFailure(err)
		observability.ObserveSchedulerRun(mode, false)
		return false
	}
	entry := model.IndexEntry{
		Timestamp:      time.Now().UTC(),
		DataPoints:     len(payload.Points),
		RunName:        runName,
		DataTime:       dataTime,
		HoursBack:      hoursBack,
		ForecastOffset: forecastOffset,
		RunAge:         runAge,
	}

	idx, err := s.store.SetVersioned(ctx, model.WindPointsKey, payload, entry, isLatest, s.params.MaxHistory)
	if err != nil {
		log.Error().Err(err).Msg("wind cache write failed")
		s.status.recordFailure(err)
		observability.ObserveSchedulerRun(mode, false)
		return false
	}
	s.dedupe.Mark(model.WindPointsKey, id)
	s.publishEvent(ctx, model.WindPointsKey, idx, id, runAge)

	s.cachePNGAndMetadata(ctx, windGrid, wp, idx, isLatest, log)
	s.fetchAndCachePrecip(ctx, date, cycle, forecastOffset, wp, idx, isLatest, id, runAge, log)

	s.status.recordSuccess()
	observability.ObserveSchedulerRun(mode, true)
	return true
}

func (s *Scheduler) cachePNGAndMetadata(ctx context.Context, g model.Grid, wp grid.WindParams, idx int, isLatest bool, log *zerolog.Logger) {
	png, meta, err := s.encoder.EncodeWindPNG(g, wp.Source, wp.DataTime.Format("2006-01-02"))
	if err != nil {
		log.Warn().Err(err).Msg("png encode unavailable, point data still cached")
		return
	}
	if err := s.store.SetBinaryVersioned(ctx, model.WindPNGKey, png, idx, isLatest); err != nil {
		log.Error().Err(err).Msg("png cache write failed")
		return
	}

	idxCopy := idx
	indexed := meta
	indexed.Index = &idxCopy
	indexed.Tiles = []string{fmt.Sprintf("/api/windgl/wind.png/%d", idx)}
	if err := s.store.SetJSON(ctx, model.WindMetadataKey+":"+strconv.Itoa(idx), indexed); err != nil {
		log.Error().Err(err).Msg("metadata write failed")
	}

	if isLatest {
		latest := meta
		latest.Tiles = []string{"/api/windgl/wind.png"}
		if err := s.store.SetJSON(ctx, model.WindMetadataKey, latest); err != nil {
			log.Error().Err(err).Msg("latest metadata alias write failed")
		}
	}
}

func (s *Scheduler) fetchAndCachePrecip(
	ctx context.Context,
	date, cycle string,
	forecastOffset int,
	wp grid.WindParams,
	_ int,
	isLatest bool,
	id model.Identity,
	runAge int,
	log *zerolog.Logger,
) {
	precipGrid, err := s.fetcher.FetchPrecip(ctx, date, cycle, forecastOffset, s.params.Bounds)
	if err != nil {
		log.Warn().Err(err).Msg("precipitation fetch failed, wind data already cached")
		return
	}

	payload, err := grid.ToPrecipPayload(precipGrid, wp, s.params.PrecipUnit)
	if err != nil {
		log.Warn().Err(err).Msg("precipitation grid missing field, wind data already cached")
		return
	}
	entry := model.IndexEntry{
		Timestamp:      time.Now().UTC(),
		DataPoints:     len(payload.Points),
		RunName:        wp.RunName,
		DataTime:       wp.DataTime,
		HoursBack:      wp.HoursBack,
		ForecastOffset: forecastOffset,
		RunAge:         runAge,
	}
	pidx, err := s.store.SetVersioned(ctx, model.PrecipitationPointsKey, payload, entry, isLatest, s.params.MaxHistory)
	if err != nil {
		log.Error().Err(err).Msg("precipitation cache write failed")
		return
	}
	s.publishEvent(ctx, model.PrecipitationPointsKey, pidx, id, runAge)
}

func (s *Scheduler) publishEvent(ctx context.Context, baseKey string, idx int, id model.Identity, runAge int) {
	ev := model.RefreshEvent{
		BaseKey:        baseKey,
		Index:          idx,
		RunName:        id.RunName,
		ForecastOffset: id.ForecastOffset,
		RunAge:         runAge,
		Timestamp:      time.Now().UTC(),
	}
	err := s.notifier.Publish(ctx, ev)
	observability.ObserveEventPublished(err)
	if err != nil {
		mylog.FromContext(ctx, s.log).Warn().Err(err).Str("base_key", baseKey).Msg("failed to publish refresh event")
	}
}

// WindParamsFor builds the per-fetch grid.WindParams shared by the wind
// and precipitation payload transforms.
func WindParamsFor(p Params, runName string, forecastOffset, runAge int, dataTime time.Time, hoursBack int) grid.WindParams {
	return grid.WindParams{
		RunName:        runName,
		ForecastOffset: forecastOffset,
		RunAge:         runAge,
		DataTime:       dataTime,
		HoursBack:      hoursBack,
		Source:         p.Source,
		Resolution:     p.Resolution,
		Bounds:         p.Bounds,
		Region:         p.Region,
	}
}
