package store

import "fmt"

// ValueTooLargeError is returned by SetJSON when a value exceeds the chunk
// threshold but is neither a JSON array nor a pointsCarrier, so there is no
// way to split it into chunks.
type ValueTooLargeError struct {
	Key  string
	Size int
}

func (e *ValueTooLargeError) Error() string {
	return fmt.Sprintf("store: value for key %q (%d bytes) has no chunkable shape", e.Key, e.Size)
}
