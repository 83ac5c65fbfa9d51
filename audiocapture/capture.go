// Package audiocapture captures microphone audio through PortAudio and
// delivers it as float32 PCM chunks.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrAlreadyCapturing is returned when Start is called while a stream is open.
var ErrAlreadyCapturing = errors.New("already capturing audio")

// ErrNoInputDevice is returned when no usable input device is found.
var ErrNoInputDevice = errors.New("no audio input device available")

const framesPerBuffer = 1024 // ~64ms at 16kHz

// Config holds configuration for microphone capture.
type Config struct {
	SampleRate int // default 16000 Hz, what Whisper expects
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{SampleRate: 16000}
}

// Microphone captures mono audio from the default input device. It satisfies
// the listener's audio source contract: Start delivers chunks through the
// callback until Stop.
type Microphone struct {
	sampleRate int

	mu        sync.Mutex
	capturing bool
	stream    *portaudio.Stream
	done      chan struct{}
	stopped   sync.WaitGroup
}

// New creates a microphone capturer.
func New(cfg Config) *Microphone {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Microphone{sampleRate: cfg.SampleRate}
}

// SampleRate returns the configured sample rate.
func (m *Microphone) SampleRate() int { return m.sampleRate }

// IsCapturing reports whether a stream is open.
func (m *Microphone) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

// Start opens the input stream and begins delivering chunks to onSamples.
// The callback runs on the capture goroutine and must not block for long;
// chunks that arrive while it blocks are dropped by the device layer.
func (m *Microphone) Start(onSamples func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capturing {
		return ErrAlreadyCapturing
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	dev, err := pickInputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	m.stream = stream
	m.capturing = true
	m.done = make(chan struct{})
	done := m.done

	slog.Info("microphone capture started", "device", dev.Name, "sampleRate", m.sampleRate)

	m.stopped.Add(1)
	go func() {
		defer m.stopped.Done()
		for {
			select {
			case <-done:
				return
			default:
			}

			if err := stream.Read(); err != nil {
				slog.Debug("microphone read error", "error", err)
				return
			}
			onSamples(append([]float32(nil), buf...))
		}
	}()

	return nil
}

// Stop closes the input stream. Safe to call when not capturing.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capturing {
		return nil
	}
	m.capturing = false
	close(m.done)

	// Stopping the stream unblocks the capture goroutine's Read.
	err := m.stream.Stop()
	m.stopped.Wait()
	m.stream.Close()
	m.stream = nil
	_ = portaudio.Terminate()

	slog.Info("microphone capture stopped")
	if err != nil {
		return fmt.Errorf("stop input stream: %w", err)
	}
	return nil
}

// pickInputDevice chooses the built-in microphone when available, otherwise
// the system default input. Virtual loopback devices are never selected so
// game audio does not feed back into the pipeline.
func pickInputDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate audio devices: %w", err)
	}

	var fallback *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || isLoopback(dev.Name) {
			continue
		}
		if isBuiltIn(dev.Name) {
			return dev, nil
		}
		if fallback == nil {
			fallback = dev
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil {
		return dev, nil
	}
	return nil, ErrNoInputDevice
}

func isLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isBuiltIn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "built-in") || strings.Contains(lower, "macbook")
}
