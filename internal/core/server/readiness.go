package server

import (
	"context"
	"time"

	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
)

// SchedulerRunning is the subset of *scheduler.Scheduler readiness needs.
type SchedulerRunning interface {
	Running() bool
}

// redisReadiness reports ready once Redis answers a ping and the
// scheduler's long-lived loop has started (it performs the initial
// backfill before its first tick).
type redisReadiness struct {
	rdb   *redisstore.Client
	sched SchedulerRunning
}

func (r redisReadiness) Readiness() (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Ping(ctx); err != nil {
		return false, "redis unreachable: " + err.Error()
	}
	if !r.sched.Running() {
		return false, "scheduler not started"
	}
	return true, ""
}
