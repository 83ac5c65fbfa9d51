// Package screenshot captures the screen for game-scene analysis.
package screenshot

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without a capture backend.
var ErrUnsupported = errors.New("screen capture not supported on this platform")

// Shooter captures the full screen as an encoded image. Implementations
// return JPEG bytes; a failed capture returns an error and no data.
type Shooter interface {
	Capture(ctx context.Context) ([]byte, error)
}

// New returns the platform screen capturer.
func New() Shooter {
	return newShooter()
}
