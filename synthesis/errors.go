package synthesis

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptySelection is returned when no identifiers are supplied
var ErrEmptySelection = errors.New("no webhooks selected")

// SynthesisError reports a failure of the text generation collaborator.
// It is never retried by the service.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the generator gave up because a deadline passed
func (e *SynthesisError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
