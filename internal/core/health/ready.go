package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter answers whether the service can serve traffic: Redis
// reachable and the scheduler loop started.
type ReadinessReporter interface {
	Readiness() (ready bool, reason string)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string `json:"status"`
			Reason string `json:"reason,omitempty"`
		}
		ready, reason := rr.Readiness()
		out := resp{Status: "not_ready", Reason: reason}
		if ready {
			out.Status = "ready"
			out.Reason = ""
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
