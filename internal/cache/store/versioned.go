package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
)

// SetVersioned writes value under base_key:i (the next monotonic index),
// appends entry (with Index set to i) to base_key:indices, evicts entries
// past maxHistory, and bumps base_key:current_index. When writeLatest is
// true it also overwrites the base_key "latest" alias -- callers gate this
// on (run_age, forecast_offset) == (0, 0); historical backfills must pass
// false so they never clobber the latest alias.
func (s *Store) SetVersioned(
	ctx context.Context,
	baseKey string,
	value any,
	entry model.IndexEntry,
	writeLatest bool,
	maxHistory int,
) (int, error) {
	unlock := s.lockFor(baseKey)
	defer unlock()

	idx, err := s.readCurrentIndex(ctx, baseKey)
	if err != nil {
		return 0, err
	}

	if err := s.SetJSON(ctx, versionKey(baseKey, idx), value); err != nil {
		return 0, fmt.Errorf("store: write version %d of %q: %w", idx, baseKey, err)
	}

	entry.Index = idx
	entries, err := s.ListIndices(ctx, baseKey)
	if err != nil {
		return 0, err
	}
	entries = append(entries, entry)
	if err := s.evictHistory(ctx, baseKey, &entries, maxHistory); err != nil {
		return 0, err
	}
	if err := s.SetJSON(ctx, indicesKey(baseKey), entries); err != nil {
		return 0, fmt.Errorf("store: write indices for %q: %w", baseKey, err)
	}

	if err := s.rdb.Set(ctx, currentIndexKey(baseKey), []byte(strconv.Itoa(idx+1)), s.ttl); err != nil {
		return 0, err
	}

	if writeLatest {
		if err := s.SetJSON(ctx, baseKey, value); err != nil {
			return 0, fmt.Errorf("store: write latest alias of %q: %w", baseKey, err)
		}
	}

	return idx, nil
}

// SetBinaryVersioned is SetVersioned's counterpart for raw binary blobs
// (PNG frames), which are never chunked and carry no IndexEntry bookkeeping
// of their own -- the wind:points index entry covers it.
func (s *Store) SetBinaryVersioned(ctx context.Context, baseKey string, buf []byte, idx int, writeLatest bool) error {
	if err := s.SetBinary(ctx, versionKey(baseKey, idx), buf); err != nil {
		return err
	}
	if writeLatest {
		if err := s.SetBinary(ctx, baseKey, buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) readCurrentIndex(ctx context.Context, baseKey string) (int, error) {
	raw, ok, err := s.rdb.Get(ctx, currentIndexKey(baseKey))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	idx, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("store: parse current_index for %q: %w", baseKey, err)
	}
	return idx, nil
}

// evictHistory drops the entries with the lowest Index once len(*entries)
// exceeds maxHistory, keeping the maxHistory entries with the highest
// Index regardless of their DataTime, and deletes their versioned
// JSON/binary keys.
func (s *Store) evictHistory(ctx context.Context, baseKey string, entries *[]model.IndexEntry, maxHistory int) error {
	if maxHistory <= 0 || len(*entries) <= maxHistory {
		return nil
	}

	sorted := append([]model.IndexEntry(nil), *entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	evictCount := len(sorted) - maxHistory
	evicted := sorted[:evictCount]
	kept := sorted[evictCount:]

	for _, e := range evicted {
		// DeleteJSON also covers binary versions: a binary key never has a
		// :chunks manifest, so it falls straight to the plain Del branch.
		if err := s.DeleteJSON(ctx, versionKey(baseKey, e.Index)); err != nil {
			return fmt.Errorf("store: evict %s:%d: %w", baseKey, e.Index, err)
		}
	}
	observability.AddHistoryEvicted(baseKey, evictCount)

	*entries = kept
	return nil
}
