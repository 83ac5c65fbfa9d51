// Package clipboard reads and writes the system clipboard.
package clipboard

import (
	"github.com/wailsapp/wails/v3/pkg/application"
)

// GetText returns the current clipboard text.
func GetText(app *application.App) (string, error) {
	return getClipboardContent(app)
}

// SetText places text on the clipboard, used to copy companion replies out
// of the app.
func SetText(app *application.App, text string) error {
	return setClipboardContent(app, text)
}
