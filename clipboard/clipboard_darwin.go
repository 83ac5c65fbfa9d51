//go:build darwin

package clipboard

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #include <stdlib.h>
// #import <Cocoa/Cocoa.h>
// const char* getClipboardContent() {
//     NSPasteboard *pasteboard = [NSPasteboard generalPasteboard];
//     NSString *string = [pasteboard stringForType:NSPasteboardTypeString];
//     return [string UTF8String];
// }
// void setClipboardContent(const char* text) {
//     NSPasteboard *pasteboard = [NSPasteboard generalPasteboard];
//     [pasteboard clearContents];
//     [pasteboard setString:[NSString stringWithUTF8String:text]
//                   forType:NSPasteboardTypeString];
// }
import "C"

var clipboardLock sync.RWMutex

func getClipboardContent(_ *application.App) (string, error) {
	clipboardLock.RLock()
	defer clipboardLock.RUnlock()

	cstr := C.getClipboardContent()
	if cstr == nil {
		return "", errors.New("failed to get clipboard content")
	}
	return C.GoString(cstr), nil
}

func setClipboardContent(_ *application.App, text string) error {
	clipboardLock.Lock()
	defer clipboardLock.Unlock()

	cstr := C.CString(text)
	defer C.free(unsafe.Pointer(cstr))
	C.setClipboardContent(cstr)
	return nil
}
