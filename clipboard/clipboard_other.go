//go:build !darwin

package clipboard

import (
	"errors"

	"github.com/wailsapp/wails/v3/pkg/application"
)

var errUnsupported = errors.New("clipboard not supported on this platform")

func getClipboardContent(_ *application.App) (string, error) {
	return "", errUnsupported
}

func setClipboardContent(_ *application.App, _ string) error {
	return errUnsupported
}
