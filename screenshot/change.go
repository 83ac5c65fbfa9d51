package screenshot

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"sync"

	"github.com/corona10/goimagehash"
)

// maxHashDistance is the Hamming distance between perceptual hashes below
// which two frames count as the same scene.
const maxHashDistance = 5

// ChangeDetector decides whether a new frame differs enough from the last
// one to be worth sending to analysis. Safe for concurrent use.
type ChangeDetector struct {
	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
}

// NewChangeDetector creates a detector with no baseline frame.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Changed reports whether imgData differs from the previous frame. The first
// frame always counts as changed. The baseline advances only on change, so a
// slowly drifting scene eventually registers.
func (d *ChangeDetector) Changed(imgData []byte) (bool, error) {
	img, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return false, fmt.Errorf("decode frame: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false, fmt.Errorf("hash frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastHash == nil {
		d.lastHash = hash
		return true, nil
	}

	dist, err := d.lastHash.Distance(hash)
	if err != nil {
		d.lastHash = hash
		return true, nil
	}
	if dist <= maxHashDistance {
		return false, nil
	}

	d.lastHash = hash
	return true, nil
}

// Reset clears the baseline frame.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	d.lastHash = nil
	d.mu.Unlock()
}
