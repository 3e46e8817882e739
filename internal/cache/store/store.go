// Package store implements the versioned, chunked JSON/binary cache used by
// the scheduler and the HTTP facade. It sits on top of redisstore for the
// raw Redis calls and owns the key layout, chunk/meta split, history
// eviction, and idempotence lookups described for the wind/precipitation
// base keys (wind:points, wind:png, wind:metadata, precipitation:points).
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
	mylog "github.com/mwinters/gfs-windcache/internal/logger"
)

// pointsCarrier is implemented by payloads whose dominant field is a points
// array that can be split out into its own chunk keys, leaving a small
// :meta blob behind.
type pointsCarrier interface {
	CachePoints() []model.PointRecord
	WithoutCachePoints() any
}

type Store struct {
	rdb           *redisstore.Client
	log           *zerolog.Logger
	ttl           time.Duration
	maxChunkBytes int

	mu      sync.Mutex
	baseMus map[string]*sync.Mutex
}

func New(rdb *redisstore.Client, log *zerolog.Logger, ttl time.Duration, maxChunkBytes int) *Store {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Store{
		rdb:           rdb,
		log:           log,
		ttl:           ttl,
		maxChunkBytes: maxChunkBytes,
		baseMus:       make(map[string]*sync.Mutex),
	}
}

// lockFor serializes the read-modify-write sequence of SetVersioned for a
// given base key; distinct base keys never contend with each other.
func (s *Store) lockFor(baseKey string) func() {
	s.mu.Lock()
	m, ok := s.baseMus[baseKey]
	if !ok {
		m = &sync.Mutex{}
		s.baseMus[baseKey] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// SetJSON marshals value and writes it under key, transparently chunking it
// across key:chunks / key:chunk:N (+ key:meta, for a pointsCarrier) when it
// exceeds maxChunkBytes.
func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %q: %w", key, err)
	}

	if len(raw) <= s.maxChunkBytes {
		return s.rdb.Set(ctx, key, raw, s.ttl)
	}

	n := chunkCount(len(raw), s.maxChunkBytes)

	if pc, ok := value.(pointsCarrier); ok {
		return s.setChunkedWithMeta(ctx, key, pc, n)
	}
	if isJSONArray(raw) {
		elems, err := decodeArray(raw)
		if err != nil {
			return fmt.Errorf("store: decode array %q: %w", key, err)
		}
		return s.setChunkedArray(ctx, key, elems, n)
	}
	return &ValueTooLargeError{Key: key, Size: len(raw)}
}

func (s *Store) setChunkedWithMeta(ctx context.Context, key string, pc pointsCarrier, n int) error {
	points := pc.CachePoints()
	elems := make([]json.RawMessage, len(points))
	for i, p := range points {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("store: marshal point %d of %q: %w", i, key, err)
		}
		elems[i] = b
	}

	if err := s.writeChunks(ctx, key, elems, n); err != nil {
		return err
	}

	metaRaw, err := json.Marshal(pc.WithoutCachePoints())
	if err != nil {
		return fmt.Errorf("store: marshal meta %q: %w", key, err)
	}
	return s.rdb.Set(ctx, metaKey(key), metaRaw, s.ttl)
}

func (s *Store) setChunkedArray(ctx context.Context, key string, elems []json.RawMessage, n int) error {
	return s.writeChunks(ctx, key, elems, n)
}

func (s *Store) writeChunks(ctx context.Context, key string, elems []json.RawMessage, n int) error {
	buckets := distributeBySize(elems, n)

	sum := xxhash.New()
	for _, bucket := range buckets {
		for _, e := range bucket {
			_, _ = sum.Write(e)
		}
	}

	for i, bucket := range buckets {
		raw, err := json.Marshal(bucket)
		if err != nil {
			return fmt.Errorf("store: marshal chunk %d of %q: %w", i, key, err)
		}
		if err := s.rdb.Set(ctx, chunkKey(key, i), raw, s.ttl); err != nil {
			return err
		}
	}
	if err := s.rdb.Set(ctx, chunksKey(key), []byte(strconv.Itoa(len(buckets))), s.ttl); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, checksumKey(key), []byte(strconv.FormatUint(sum.Sum64(), 16)), s.ttl); err != nil {
		return err
	}
	observability.AddChunksWritten(len(buckets))
	return nil
}

// GetJSON reconstructs the raw JSON bytes stored under key, transparently
// reassembling chunks and re-attaching the :meta object's points field when
// present. ok is false if the key (and its chunk manifest) does not exist.
func (s *Store) GetJSON(ctx context.Context, key string) (json.RawMessage, bool, error) {
	chunksRaw, hasChunks, err := s.rdb.Get(ctx, chunksKey(key))
	if err != nil {
		return nil, false, err
	}
	if !hasChunks {
		raw, ok, err := s.rdb.Get(ctx, key)
		if err != nil || !ok {
			return nil, ok, err
		}
		return json.RawMessage(raw), true, nil
	}

	n, err := strconv.Atoi(string(chunksRaw))
	if err != nil {
		return nil, false, fmt.Errorf("store: parse chunk count for %q: %w", key, err)
	}

	var elems []json.RawMessage
	for i := 0; i < n; i++ {
		raw, ok, err := s.rdb.Get(ctx, chunkKey(key, i))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue // chunk expired independently; best-effort reassembly
		}
		bucket, err := decodeArray(raw)
		if err != nil {
			return nil, false, fmt.Errorf("store: decode chunk %d of %q: %w", i, key, err)
		}
		elems = append(elems, bucket...)
	}
	pointsRaw, err := json.Marshal(elems)
	if err != nil {
		return nil, false, err
	}
	s.verifyChecksum(ctx, key, elems)

	metaRaw, hasMeta, err := s.rdb.Get(ctx, metaKey(key))
	if err != nil {
		return nil, false, err
	}
	if !hasMeta {
		return json.RawMessage(pointsRaw), true, nil
	}
	merged, err := mergePoints(metaRaw, pointsRaw)
	if err != nil {
		return nil, false, err
	}
	return merged, true, nil
}

func (s *Store) verifyChecksum(ctx context.Context, key string, elems []json.RawMessage) {
	want, ok, err := s.rdb.Get(ctx, checksumKey(key))
	if err != nil || !ok {
		return
	}
	sum := xxhash.New()
	for _, e := range elems {
		_, _ = sum.Write(e)
	}
	got := strconv.FormatUint(sum.Sum64(), 16)
	if got != string(want) {
		mylog.FromContext(ctx, s.log).Warn().
			Str("key", key).
			Str("want", string(want)).
			Str("got", got).
			Msg("chunk checksum mismatch on reassembly")
	}
}

// mergePoints overlays pointsRaw onto metaRaw's "points" field.
func mergePoints(metaRaw, pointsRaw json.RawMessage) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(metaRaw, &obj); err != nil {
		return nil, fmt.Errorf("store: decode meta object: %w", err)
	}
	obj["points"] = pointsRaw
	return json.Marshal(obj)
}

// GetJSONInto is GetJSON followed by json.Unmarshal into out.
func (s *Store) GetJSONInto(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.GetJSON(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("store: unmarshal %q: %w", key, err)
	}
	return true, nil
}

// DeleteJSON removes key and, if chunked, its manifest/meta/chunk keys.
func (s *Store) DeleteJSON(ctx context.Context, key string) error {
	chunksRaw, hasChunks, err := s.rdb.Get(ctx, chunksKey(key))
	if err != nil {
		return err
	}
	if !hasChunks {
		return s.rdb.Del(ctx, key)
	}
	n, err := strconv.Atoi(string(chunksRaw))
	if err != nil {
		n = 0
	}
	toDelete := make([]string, 0, n+4)
	toDelete = append(toDelete, key, chunksKey(key), metaKey(key), checksumKey(key))
	for i := 0; i < n; i++ {
		toDelete = append(toDelete, chunkKey(key, i))
	}
	return s.rdb.Del(ctx, toDelete...)
}

// SetBinary base64-encodes buf and writes it under key. Binary values are
// not chunked.
func (s *Store) SetBinary(ctx context.Context, key string, buf []byte) error {
	enc := base64.StdEncoding.EncodeToString(buf)
	return s.rdb.Set(ctx, key, []byte(enc), s.ttl)
}

// GetBinary reads and base64-decodes the value stored under key.
func (s *Store) GetBinary(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.rdb.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	dec, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, false, fmt.Errorf("store: decode binary %q: %w", key, err)
	}
	return dec, true, nil
}

// ListIndices returns base_key:indices sorted by data_time, most recent
// first.
func (s *Store) ListIndices(ctx context.Context, baseKey string) ([]model.IndexEntry, error) {
	var entries []model.IndexEntry
	ok, err := s.GetJSONInto(ctx, indicesKey(baseKey), &entries)
	if err != nil || !ok {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DataTime.After(entries[j].DataTime) })
	return entries, nil
}

// HasIdentity reports whether a (run_name, forecast_offset) pair already
// has an entry in base_key:indices -- the scheduler's idempotence check.
func (s *Store) HasIdentity(ctx context.Context, baseKey string, id model.Identity) (bool, error) {
	entries, err := s.ListIndices(ctx, baseKey)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.RunName == id.RunName && e.ForecastOffset == id.ForecastOffset {
			return true, nil
		}
	}
	return false, nil
}
