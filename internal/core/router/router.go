// Package router wires the downstream HTTP surface: reads of the cached
// wind/precipitation artifacts, and the manual-trigger endpoints that
// re-invoke the scheduler synchronously.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwinters/gfs-windcache/internal/cache/store"
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
	"github.com/mwinters/gfs-windcache/internal/scheduler"
)

// SchedulerFacade is the subset of *scheduler.Scheduler the HTTP facade
// depends on, kept as an interface so handlers can be tested against a
// fake instead of a live scheduler + fetcher + Redis.
type SchedulerFacade interface {
	Status() scheduler.Status
	FetchHistorical24h(ctx context.Context) model.FetchSummary
	RunLatestCheck(ctx context.Context) bool
}

const indicesPageSize = 8

type Handlers struct {
	store     *store.Store
	scheduler SchedulerFacade
}

func NewHandlers(st *store.Store, sched SchedulerFacade) *Handlers {
	return &Handlers{store: st, scheduler: sched}
}

// Mount attaches every route this facade serves under r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/api/wind-global", h.wrap("wind_global", h.windGlobal))
	r.Get("/api/wind-global/{index}", h.wrap("wind_global_indexed", h.windGlobalIndexed))
	r.Get("/api/wind-indices", h.wrap("wind_indices", h.windIndices))
	r.Get("/api/windgl/metadata.json", h.wrap("wind_metadata", h.windMetadata))
	r.Get("/api/windgl/metadata.json/{index}", h.wrap("wind_metadata_indexed", h.windMetadataIndexed))
	r.Get("/api/windgl/wind.png", h.wrap("wind_png", h.windPNG))
	r.Get("/api/windgl/wind.png/{index}", h.wrap("wind_png_indexed", h.windPNGIndexed))
	r.Get("/api/precipitation-global", h.wrap("precip_global", h.precipGlobal))
	r.Get("/api/precipitation-global/{index}", h.wrap("precip_global_indexed", h.precipGlobalIndexed))
	r.Get("/api/precipitation-indices", h.wrap("precip_indices", h.precipIndices))
	r.Get("/api/wind-status", h.wrap("wind_status", h.windStatus))
	r.Post("/api/wind-refresh", h.wrap("wind_refresh", h.windRefresh))
	r.Post("/api/wind-refresh-latest", h.wrap("wind_refresh_latest", h.windRefreshLatest))
}

// wrap records the route's HTTP metrics around a plain handler, using
// statusWriter to capture the written status code without every handler
// re-implementing it.
func (h *Handlers) wrap(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) windGlobal(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByKey(w, r, model.WindPointsKey, true)
}

func (h *Handlers) windGlobalIndexed(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByIndex(w, r, model.WindPointsKey)
}

func (h *Handlers) precipGlobal(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByKey(w, r, model.PrecipitationPointsKey, true)
}

func (h *Handlers) precipGlobalIndexed(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByIndex(w, r, model.PrecipitationPointsKey)
}

func (h *Handlers) windMetadata(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByKey(w, r, model.WindMetadataKey, true)
}

func (h *Handlers) windMetadataIndexed(w http.ResponseWriter, r *http.Request) {
	h.serveJSONByIndex(w, r, model.WindMetadataKey)
}

// serveJSONByKey reads key (a "latest" alias or an indexed key) and writes
// it verbatim. latestAlias controls the miss status: 503 for aliases per the
// facade's "latest not yet populated" contract, 404 otherwise.
func (h *Handlers) serveJSONByKey(w http.ResponseWriter, r *http.Request, key string, latestAlias bool) {
	raw, ok, err := h.store.GetJSON(r.Context(), key)
	if err != nil {
		http.Error(w, "cache read failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		status := http.StatusNotFound
		if latestAlias {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "no data cached yet", status)
		return
	}
	writeJSON(w, raw)
}

func (h *Handlers) serveJSONByIndex(w http.ResponseWriter, r *http.Request, baseKey string) {
	idx, err := parseIndex(r)
	if err != nil {
		http.Error(w, "invalid index", http.StatusNotFound)
		return
	}
	h.serveJSONByKey(w, r, baseKey+":"+strconv.Itoa(idx), false)
}

func (h *Handlers) windPNG(w http.ResponseWriter, r *http.Request) {
	h.servePNGByKey(w, r, model.WindPNGKey)
}

func (h *Handlers) windPNGIndexed(w http.ResponseWriter, r *http.Request) {
	idx, err := parseIndex(r)
	if err != nil {
		http.Error(w, "invalid index", http.StatusNotFound)
		return
	}
	h.servePNGByKey(w, r, model.WindPNGKey+":"+strconv.Itoa(idx))
}

func (h *Handlers) servePNGByKey(w http.ResponseWriter, r *http.Request, key string) {
	buf, ok, err := h.store.GetBinary(r.Context(), key)
	if err != nil {
		http.Error(w, "cache read failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no png cached for this index", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(buf)
}

func (h *Handlers) windIndices(w http.ResponseWriter, r *http.Request) {
	h.serveIndices(w, r, model.WindPointsKey)
}

func (h *Handlers) precipIndices(w http.ResponseWriter, r *http.Request) {
	h.serveIndices(w, r, model.PrecipitationPointsKey)
}

type indicesResponse struct {
	Count   int                `json:"count"`
	Indices []model.IndexEntry `json:"indices"`
}

func (h *Handlers) serveIndices(w http.ResponseWriter, r *http.Request, baseKey string) {
	entries, err := h.store.ListIndices(r.Context(), baseKey)
	if err != nil {
		http.Error(w, "cache read failed", http.StatusInternalServerError)
		return
	}
	if len(entries) > indicesPageSize {
		entries = entries[:indicesPageSize]
	}
	writeJSONValue(w, indicesResponse{Count: len(entries), Indices: entries})
}

func (h *Handlers) windStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONValue(w, h.scheduler.Status())
}

func (h *Handlers) windRefresh(w http.ResponseWriter, r *http.Request) {
	summary := h.scheduler.FetchHistorical24h(r.Context())
	writeJSONValue(w, refreshResponse{Success: summary.Success, Status: h.scheduler.Status()})
}

func (h *Handlers) windRefreshLatest(w http.ResponseWriter, r *http.Request) {
	success := h.scheduler.RunLatestCheck(r.Context())
	writeJSONValue(w, refreshResponse{Success: success, Status: h.scheduler.Status()})
}

type refreshResponse struct {
	Success bool            `json:"success"`
	Status  scheduler.Status `json:"status"`
}

func parseIndex(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "index"))
}

func writeJSON(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func writeJSONValue(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
