//go:build !darwin

package screenshot

import "context"

// HasPermission checks if the app has screen recording permission.
func HasPermission() bool {
	return false
}

// RequestPermission requests screen recording permission from the system.
func RequestPermission() {}

type stubShooter struct{}

func newShooter() Shooter {
	return stubShooter{}
}

func (stubShooter) Capture(context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}
