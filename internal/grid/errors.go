package grid

// EncoderUnavailableError is returned by a disabled/absent PNG encoder.
// Non-fatal: the point-level JSON is still written; only the PNG endpoint
// degrades to 404.
type EncoderUnavailableError struct{}

func (EncoderUnavailableError) Error() string { return "grid: png encoder unavailable" }
