package listen

import (
	"math"
	"time"
)

// State is the listener's voice-activity state.
type State int

const (
	// StateIdle means no speech is being observed.
	StateIdle State = iota
	// StateSpeaking means a speech segment is being accumulated.
	StateSpeaking
	// StateProcessing means a segment was closed and is being recognized.
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Event is a state-machine transition produced by processing audio.
type Event int

const (
	EventNone Event = iota
	// EventSpeechStart fires on the Idle->Speaking (or Processing->Speaking)
	// transition.
	EventSpeechStart
	// EventSpeechEnd fires on the Speaking->Processing transition when the
	// segment met the minimum duration.
	EventSpeechEnd
)

// Config holds the voice-activity thresholds.
type Config struct {
	VolumeThreshold   float32       // RMS above which a chunk counts as voice
	SilenceDuration   time.Duration // silence that closes a segment
	MinSpeechDuration time.Duration // segments shorter than this are discarded
	MaxSpeechDuration time.Duration // segments longer than this are force-closed
}

// DefaultConfig returns thresholds tuned for a streamer talking over game
// audio: a higher volume floor avoids sound-effect false triggers, and the
// long silence window tolerates thinking pauses.
func DefaultConfig() Config {
	return Config{
		VolumeThreshold:   0.035,
		SilenceDuration:   2500 * time.Millisecond,
		MinSpeechDuration: 500 * time.Millisecond,
		MaxSpeechDuration: 60 * time.Second,
	}
}

// processingTimeout returns the detector to Idle when no new voice arrives
// while a previous segment is still being processed.
const processingTimeout = 2 * time.Second

// Result describes the outcome of processing one audio chunk.
type Result struct {
	Event    Event
	Duration time.Duration // populated for EventSpeechEnd
}

// Detector is the three-state voice-activity machine. It owns the PCM
// accumulation buffer for the segment in flight. Not safe for concurrent
// use; the Listener serializes access.
type Detector struct {
	cfg Config

	state       State
	speechStart time.Time
	lastVoice   time.Time
	buffer      []float32

	now func() time.Time // test seam
}

// NewDetector creates a detector in the Idle state.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg, now: time.Now}
}

// State returns the current voice-activity state.
func (d *Detector) State() State { return d.state }

// Process consumes one chunk of PCM samples and returns the transition it
// caused, if any.
func (d *Detector) Process(chunk []float32) Result {
	now := d.now()
	rms := calculateRMS(chunk)
	voiced := rms > d.cfg.VolumeThreshold

	switch d.state {
	case StateIdle:
		if voiced {
			d.startSpeech(now, chunk)
			return Result{Event: EventSpeechStart}
		}

	case StateSpeaking:
		d.buffer = append(d.buffer, chunk...)
		if voiced {
			d.lastVoice = now
		}

		totalDur := now.Sub(d.speechStart)
		silenceDur := now.Sub(d.lastVoice)

		// Force-close overlong segments; close on sustained silence.
		if totalDur > d.cfg.MaxSpeechDuration || silenceDur > d.cfg.SilenceDuration {
			// Trailing silence is not speech: measure to the last voiced
			// chunk so a lone blip never passes the minimum duration.
			voicedDur := d.lastVoice.Sub(d.speechStart)
			d.state = StateProcessing
			d.speechStart = now // anchors the processing timeout
			if voicedDur >= d.cfg.MinSpeechDuration {
				return Result{Event: EventSpeechEnd, Duration: voicedDur}
			}
			// Too short to be speech: drop the buffer, no downstream event.
			d.buffer = nil
		}

	case StateProcessing:
		if voiced {
			// New voice while a previous segment is still processing:
			// restart accumulation immediately.
			d.startSpeech(now, chunk)
			return Result{Event: EventSpeechStart}
		}
		if now.Sub(d.speechStart) > processingTimeout {
			d.Reset()
		}
	}

	return Result{}
}

func (d *Detector) startSpeech(now time.Time, chunk []float32) {
	d.state = StateSpeaking
	d.speechStart = now
	d.lastVoice = now
	d.buffer = d.buffer[:0]
	d.buffer = append(d.buffer, chunk...)
}

// TakeBuffer returns the accumulated segment PCM and clears it.
func (d *Detector) TakeBuffer() []float32 {
	buf := d.buffer
	d.buffer = nil
	return buf
}

// MarkProcessed returns the detector to Idle once the recognition and
// analysis chain for the last segment completed.
func (d *Detector) MarkProcessed() {
	if d.state == StateProcessing {
		d.Reset()
	}
}

// Reset returns the detector to Idle and discards any buffered audio.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.speechStart = time.Time{}
	d.lastVoice = time.Time{}
	d.buffer = nil
}

// RecordingDuration returns how long the current segment has been running.
func (d *Detector) RecordingDuration() time.Duration {
	if d.state != StateSpeaking || d.speechStart.IsZero() {
		return 0
	}
	return d.now().Sub(d.speechStart)
}

// BufferSize returns the number of buffered samples.
func (d *Detector) BufferSize() int { return len(d.buffer) }

// calculateRMS calculates the root mean square of audio samples.
func calculateRMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
