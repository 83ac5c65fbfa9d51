package speech

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const playbackFrames = 1024

// playPCM plays a 24kHz mono 16-bit stream on the default output device.
// Returns early when ctx is cancelled.
func playPCM(ctx context.Context, data []byte) error {
	samples := decodePCM(data)
	if len(samples) == 0 {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]int16, playbackFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, ttsSampleRate, playbackFrames, buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += playbackFrames {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(buf, samples[off:])
		for i := n; i < playbackFrames; i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}
