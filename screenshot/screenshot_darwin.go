package screenshot

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework Foundation
#import <CoreGraphics/CoreGraphics.h>
#import <Foundation/Foundation.h>

bool hasScreenRecordingPermission() {
    if (@available(macOS 11.0, *)) {
        return CGPreflightScreenCaptureAccess();
    }
    return true;
}

void requestScreenRecordingPermission() {
    if (@available(macOS 11.0, *)) {
        CGRequestScreenCaptureAccess();
    }
}
*/
import "C"
import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// HasPermission checks if the app has screen recording permission.
func HasPermission() bool {
	return bool(C.hasScreenRecordingPermission())
}

// RequestPermission requests screen recording permission from the system.
func RequestPermission() {
	C.requestScreenRecordingPermission()
}

type darwinShooter struct{}

func newShooter() Shooter {
	return darwinShooter{}
}

// Capture grabs the full screen with the system screencapture tool.
// JPEG keeps the payload small enough for vision model requests.
func (darwinShooter) Capture(ctx context.Context) ([]byte, error) {
	tmpDir := os.TempDir()
	fileName := fmt.Sprintf("gamepal_screenshot_%d.jpg", time.Now().UnixNano())
	filePath := filepath.Join(tmpDir, fileName)
	defer os.Remove(filePath)

	// -x: no shutter sound, the streamer's mic is live
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "jpg", filePath)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture failed: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot file empty")
	}
	return data, nil
}
