package bus

import "testing"

func TestDeduper_SuppressesReplay(t *testing.T) {
	d := NewDeduper()

	if d.Seen(42) {
		t.Fatal("first observation reported as duplicate")
	}
	if !d.Seen(42) {
		t.Fatal("replayed key not reported as duplicate")
	}
	if !d.Seen(42) {
		t.Fatal("third observation not reported as duplicate")
	}
}

// TestDeduper_BatchEviction verifies the bound of 100 with eviction of the
// oldest 50 in one batch.
func TestDeduper_BatchEviction(t *testing.T) {
	d := NewDeduper()

	for i := int64(0); i < DedupLimit; i++ {
		if d.Seen(i) {
			t.Fatalf("key %d reported as duplicate on first observation", i)
		}
	}
	if d.Len() != DedupLimit {
		t.Fatalf("Len() = %d, want %d", d.Len(), DedupLimit)
	}

	// The 101st key forces a batch eviction of the oldest 50.
	if d.Seen(int64(DedupLimit)) {
		t.Fatal("new key reported as duplicate")
	}
	if got, want := d.Len(), DedupLimit-DedupEvict+1; got != want {
		t.Fatalf("Len() after eviction = %d, want %d", got, want)
	}

	// Evicted keys are forgotten; retained keys are not.
	if d.Seen(0) {
		t.Fatal("evicted key still reported as duplicate")
	}
	if !d.Seen(99) {
		t.Fatal("retained key no longer reported as duplicate")
	}
}

func TestDeduper_BoundsFallback(t *testing.T) {
	tests := []struct {
		name         string
		limit, evict int
		wantLimit    int
		wantEvict    int
	}{
		{"zero limit", 0, 0, DedupLimit, DedupEvict},
		{"evict larger than limit", 10, 20, 10, 5},
		{"explicit", 6, 3, 6, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduperWithBounds(tt.limit, tt.evict)
			if d.limit != tt.wantLimit || d.evict != tt.wantEvict {
				t.Errorf("bounds = (%d, %d), want (%d, %d)", d.limit, d.evict, tt.wantLimit, tt.wantEvict)
			}
		})
	}
}
