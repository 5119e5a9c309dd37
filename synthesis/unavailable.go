package synthesis

import (
	"context"
	"errors"
)

// ErrGeneratorUnavailable is returned by Unavailable
var ErrGeneratorUnavailable = errors.New("code generation is not configured")

// Unavailable is the Generator used when no model credentials are configured
type Unavailable struct{}

func (Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", ErrGeneratorUnavailable
}
