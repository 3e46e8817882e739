package opendap

import (
	"fmt"
	"regexp"
	"strings"
)

// UpstreamHTTPError is returned for any non-2xx OpenDAP response.
type UpstreamHTTPError struct {
	Status int
	URL    string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("opendap: upstream returned status %d for %s", e.Status, e.URL)
}

// UpstreamNotReadyError is returned when OpenDAP answers with an HTML error
// page instead of ASCII data, typically meaning the requested run hasn't
// been published yet.
type UpstreamNotReadyError struct {
	Message string
}

func (e *UpstreamNotReadyError) Error() string {
	return fmt.Sprintf("opendap: dataset not ready: %s", e.Message)
}

var boldFragment = regexp.MustCompile(`(?is)<b>(.*?)</b>`)

// looksLikeHTML reports whether body is an HTML error page rather than an
// ASCII data payload.
func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html")
}

// notReadyError extracts the message from a "<b>...</b>" fragment, falling
// back to a generic message when none is present.
func notReadyError(body string) *UpstreamNotReadyError {
	if m := boldFragment.FindStringSubmatch(body); len(m) == 2 {
		msg := strings.TrimSpace(m[1])
		if msg != "" {
			return &UpstreamNotReadyError{Message: msg}
		}
	}
	return &UpstreamNotReadyError{Message: "dataset not available"}
}
