package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
	"github.com/mwinters/gfs-windcache/internal/core/model"
)

func newTestStore(t *testing.T, maxChunkBytes int) *Store {
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

	return New(rc, nil, time.Hour, maxChunkBytes)
}

func bigWindPayload(n int) model.WindPayload {
	pts := make([]model.PointRecord, n)
	for i := range pts {
		pts[i] = model.NewWindPoint(float64(i%180)-90, float64(i%360)-180, 3.4, -1.2)
	}
	return model.WindPayload{
		RunName:        "20260730_06",
		ForecastOffset: 3,
		RunAge:         0,
		Source:         "gfs",
		Resolution:     0.5,
		Points:         pts,
	}
}

func TestSetJSON_SmallValue_NotChunked(t *testing.T) {
	s := newTestStore(t, 8<<20)
	ctx := context.Background()

	p := bigWindPayload(3)
	if err := s.SetJSON(ctx, "wind:points:0", p); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	if _, ok, _ := s.rdb.Get(ctx, chunksKey("wind:points:0")); ok {
		t.Fatalf("expected no chunk manifest for a small value")
	}

	var got model.WindPayload
	ok, err := s.GetJSONInto(ctx, "wind:points:0", &got)
	if err != nil || !ok {
		t.Fatalf("GetJSONInto: ok=%v err=%v", ok, err)
	}
	if len(got.Points) != 3 {
		t.Fatalf("points=%d want 3", len(got.Points))
	}
}

// TestSetJSON_LargeWindPayload_ChunksWithMeta checks that a payload above
// the chunk threshold is split across N chunk keys plus a :meta blob, and
// reads back with the original point count and meta fields.
func TestSetJSON_LargeWindPayload_ChunksWithMeta(t *testing.T) {
	const maxChunk = 2048
	s := newTestStore(t, maxChunk)
	ctx := context.Background()

	p := bigWindPayload(200)
	key := "wind:points:0"
	if err := s.SetJSON(ctx, key, p); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	raw, ok, err := s.rdb.Get(ctx, chunksKey(key))
	if err != nil || !ok {
		t.Fatalf("expected chunk manifest: ok=%v err=%v", ok, err)
	}
	if string(raw) == "0" || string(raw) == "" {
		t.Fatalf("unexpected chunk count %q", raw)
	}

	if _, ok, _ := s.rdb.Get(ctx, metaKey(key)); !ok {
		t.Fatalf("expected :meta key for a pointsCarrier payload")
	}

	var got model.WindPayload
	ok, err = s.GetJSONInto(ctx, key, &got)
	if err != nil || !ok {
		t.Fatalf("GetJSONInto: ok=%v err=%v", ok, err)
	}
	if len(got.Points) != len(p.Points) {
		t.Fatalf("points=%d want %d", len(got.Points), len(p.Points))
	}
	if got.RunName != p.RunName || got.ForecastOffset != p.ForecastOffset {
		t.Fatalf("meta fields lost: got=%+v", got)
	}
}

func TestSetJSON_PlainArray_ChunksWithoutMeta(t *testing.T) {
	const maxChunk = 256
	s := newTestStore(t, maxChunk)
	ctx := context.Background()

	arr := make([]int, 500)
	for i := range arr {
		arr[i] = i
	}
	key := "some:array"
	if err := s.SetJSON(ctx, key, arr); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if _, ok, _ := s.rdb.Get(ctx, metaKey(key)); ok {
		t.Fatalf("a plain array should not produce a :meta key")
	}

	raw, ok, err := s.GetJSON(ctx, key)
	if err != nil || !ok {
		t.Fatalf("GetJSON: ok=%v err=%v", ok, err)
	}
	var got []int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(arr) {
		t.Fatalf("len=%d want %d", len(got), len(arr))
	}
	for i := range arr {
		if got[i] != arr[i] {
			t.Fatalf("element %d: got %d want %d", i, got[i], arr[i])
		}
	}
}

func TestSetJSON_UnchunkableShape_ReturnsValueTooLarge(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	err := s.SetJSON(ctx, "k", map[string]string{"a": strings.Repeat("x", 100)})
	if err == nil {
		t.Fatalf("expected ValueTooLargeError")
	}
	var tooLarge *ValueTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *ValueTooLargeError, got %T: %v", err, err)
	}
}

func TestSetBinary_RoundTrips(t *testing.T) {
	s := newTestStore(t, 8<<20)
	ctx := context.Background()

	buf := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02}
	if err := s.SetBinary(ctx, "wind:png:0", buf); err != nil {
		t.Fatalf("SetBinary: %v", err)
	}
	got, ok, err := s.GetBinary(ctx, "wind:png:0")
	if err != nil || !ok {
		t.Fatalf("GetBinary: ok=%v err=%v", ok, err)
	}
	if string(got) != string(buf) {
		t.Fatalf("got %v want %v", got, buf)
	}
}

// TestSetVersioned_MonotonicIndexAndIdempotence checks that identical
// (run_name, forecast_offset) pairs are detectable via HasIdentity, and
// distinct ones get increasing indices.
func TestSetVersioned_MonotonicIndexAndIdempotence(t *testing.T) {
	s := newTestStore(t, 8<<20)
	ctx := context.Background()
	baseKey := "wind:points"

	for i := 0; i < 3; i++ {
		p := bigWindPayload(2)
		p.ForecastOffset = i * 3
		entry := model.IndexEntry{
			RunName:        p.RunName,
			DataTime:       time.Now().Add(time.Duration(i) * time.Hour),
			ForecastOffset: p.ForecastOffset,
			RunAge:         0,
			HoursBack:      0,
			DataPoints:     len(p.Points),
		}
		idx, err := s.SetVersioned(ctx, baseKey, p, entry, i == 0, 20)
		if err != nil {
			t.Fatalf("SetVersioned[%d]: %v", i, err)
		}
		if idx != i {
			t.Fatalf("index=%d want %d", idx, i)
		}
	}

	has, err := s.HasIdentity(ctx, baseKey, model.Identity{RunName: "20260730_06", ForecastOffset: 3})
	if err != nil || !has {
		t.Fatalf("HasIdentity existing pair: has=%v err=%v", has, err)
	}
	has, err = s.HasIdentity(ctx, baseKey, model.Identity{RunName: "20260730_06", ForecastOffset: 99})
	if err != nil || has {
		t.Fatalf("HasIdentity missing pair: has=%v err=%v", has, err)
	}
}

// TestSetVersioned_EvictsBeyondMaxHistory checks that once more than
// max_history versions exist, the oldest are dropped from both the index
// list and the cache.
func TestSetVersioned_EvictsBeyondMaxHistory(t *testing.T) {
	s := newTestStore(t, 8<<20)
	ctx := context.Background()
	baseKey := "wind:points"
	const maxHistory = 3

	var firstIdx int
	for i := 0; i < maxHistory+2; i++ {
		p := bigWindPayload(1)
		p.ForecastOffset = i * 3
		entry := model.IndexEntry{
			RunName:        p.RunName,
			DataTime:       time.Now().Add(time.Duration(i) * time.Hour),
			ForecastOffset: p.ForecastOffset,
		}
		idx, err := s.SetVersioned(ctx, baseKey, p, entry, false, maxHistory)
		if err != nil {
			t.Fatalf("SetVersioned[%d]: %v", i, err)
		}
		if i == 0 {
			firstIdx = idx
		}
	}

	entries, err := s.ListIndices(ctx, baseKey)
	if err != nil {
		t.Fatalf("ListIndices: %v", err)
	}
	if len(entries) != maxHistory {
		t.Fatalf("indices len=%d want %d", len(entries), maxHistory)
	}

	if _, ok, _ := s.rdb.Get(ctx, versionKey(baseKey, firstIdx)); ok {
		t.Fatalf("expected the oldest version to be evicted from the cache")
	}
}

func TestDistributeBySize_PreservesOrderAndCount(t *testing.T) {
	elems := make([]json.RawMessage, 10)
	for i := range elems {
		elems[i] = json.RawMessage(strings.Repeat("a", i+1))
	}
	buckets := distributeBySize(elems, 3)
	if len(buckets) != 3 {
		t.Fatalf("buckets=%d want 3", len(buckets))
	}
	var flat []json.RawMessage
	for _, b := range buckets {
		flat = append(flat, b...)
	}
	if len(flat) != len(elems) {
		t.Fatalf("flattened=%d want %d", len(flat), len(elems))
	}
	for i := range elems {
		if string(flat[i]) != string(elems[i]) {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestChunkCount(t *testing.T) {
	cases := []struct{ size, max, want int }{
		{100, 1000, 1},
		{1000, 1000, 1},
		{1001, 1000, 2},
		{8 << 20 * 2, 8 << 20, 2},
		{0, 1000, 1},
	}
	for _, c := range cases {
		if got := chunkCount(c.size, c.max); got != c.want {
			t.Fatalf("chunkCount(%d,%d)=%d want %d", c.size, c.max, got, c.want)
		}
	}
}
