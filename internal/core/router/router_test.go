package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
	"github.com/mwinters/gfs-windcache/internal/cache/store"
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/scheduler"
)

type fakeScheduler struct {
	status          scheduler.Status
	backfillCalls   int
	latestCalls     int
	latestCheckResp bool
}

func (f *fakeScheduler) Status() scheduler.Status { return f.status }
func (f *fakeScheduler) FetchHistorical24h(context.Context) model.FetchSummary {
	f.backfillCalls++
	return model.FetchSummary{Success: true, Timestamp: time.Now().UTC(), SuccessCount: 8}
}
func (f *fakeScheduler) RunLatestCheck(context.Context) bool {
	f.latestCalls++
	return f.latestCheckResp
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *fakeScheduler) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	st := store.New(rc, nil, time.Hour, 8<<20)
	fs := &fakeScheduler{latestCheckResp: true}

	r := chi.NewRouter()
	NewHandlers(st, fs).Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st, fs
}

func TestWindGlobal_MissingLatest_Returns503(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/wind-global")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", resp.StatusCode)
	}
}

func TestWindGlobal_Present_ReturnsPayload(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()
	payload := model.WindPayload{RunName: "20260730_06Z", Points: []model.PointRecord{{Lat: 1, Lon: 2}}}
	if err := st.SetJSON(ctx, model.WindPointsKey, payload); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/wind-global")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	var got model.WindPayload
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunName != "20260730_06Z" {
		t.Fatalf("run_name=%q want 20260730_06Z", got.RunName)
	}
}

func TestWindGlobalIndexed_Missing_Returns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/wind-global/3")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestWindGlobalIndexed_MalformedIndex_Returns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/wind-global/not-a-number")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestWindPNG_MissingEncoderOutput_Returns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/windgl/wind.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestWindPNG_Present_SetsCacheHeaders(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()
	if err := st.SetBinary(ctx, model.WindPNGKey, []byte{0x89, 0x50, 0x4e, 0x47}); err != nil {
		t.Fatalf("SetBinary: %v", err)
	}
	resp, err := http.Get(srv.URL + "/api/windgl/wind.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content-type=%q want image/png", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Fatalf("cache-control=%q want public, max-age=3600", cc)
	}
}

func TestWindIndices_CapsAtEight(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		entry := model.IndexEntry{RunName: "r", ForecastOffset: i, DataTime: time.Now().Add(time.Duration(i) * time.Hour)}
		if _, err := st.SetVersioned(ctx, model.WindPointsKey, model.WindPayload{}, entry, false, 20); err != nil {
			t.Fatalf("SetVersioned %d: %v", i, err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/wind-indices")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var got struct {
		Count   int                `json:"count"`
		Indices []model.IndexEntry `json:"indices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 8 || len(got.Indices) != 8 {
		t.Fatalf("count=%d len(indices)=%d want 8/8", got.Count, len(got.Indices))
	}
}

func TestWindRefresh_InvokesBackfillSynchronously(t *testing.T) {
	srv, _, fs := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/wind-refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	if fs.backfillCalls != 1 {
		t.Fatalf("backfillCalls=%d want 1", fs.backfillCalls)
	}
	var got struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success {
		t.Fatalf("expected success=true")
	}
}

func TestWindRefreshLatest_InvokesLatestCheck(t *testing.T) {
	srv, _, fs := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/wind-refresh-latest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if fs.latestCalls != 1 {
		t.Fatalf("latestCalls=%d want 1", fs.latestCalls)
	}
}
