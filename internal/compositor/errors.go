package compositor

import "fmt"

// DecodeError indicates that a clip's decode resource failed to open, seek,
// or produce a frame. The caller decides policy: the preview scheduler logs
// and keeps running, the exporter treats it as fatal.
type DecodeError struct {
	Source string
	Op     string
	Cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s failed for %s: %v", e.Op, e.Source, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func newDecodeError(source, op string, cause error) *DecodeError {
	return &DecodeError{Source: source, Op: op, Cause: cause}
}
