package recognize

import (
	"bytes"
	"encoding/binary"
)

// encodeWAV packs float32 PCM in [-1, 1] into a mono 16-bit little-endian
// WAV container.
func encodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(buf, le, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, le, uint32(16)) // fmt chunk size
	binary.Write(buf, le, uint16(1))  // PCM
	binary.Write(buf, le, uint16(1))  // mono
	binary.Write(buf, le, uint32(sampleRate))
	binary.Write(buf, le, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, le, uint16(2))            // block align
	binary.Write(buf, le, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, le, uint32(dataSize))

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.Write(buf, le, int16(s*32767))
	}
	return buf.Bytes()
}
