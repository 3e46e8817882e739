package scheduler

import (
	"sync"
	"time"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

// Status is the bookkeeping the scheduler exposes to /api/wind-status: the
// last-fetch summary plus whether a loop is currently running.
type Status struct {
	Running   bool               `json:"running"`
	LastFetch model.FetchSummary `json:"last_fetch"`
}

type statusBox struct {
	mu   sync.Mutex
	last model.FetchSummary
}

func (b *statusBox) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = model.FetchSummary{Success: true, Timestamp: time.Now().UTC()}
}

func (b *statusBox) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = model.FetchSummary{Success: false, Timestamp: time.Now().UTC(), Error: err.Error()}
}

func (b *statusBox) recordSummary(s model.FetchSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
}

func (b *statusBox) get() model.FetchSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
