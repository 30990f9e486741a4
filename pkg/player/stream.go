// Package player turns a synthesizer's float output into 16-bit PCM, either
// streamed to the audio device through Ebitengine or written as a WAV file.
package player

import (
	"encoding/binary"
	"sync"
)

// Renderer produces stereo float audio, frames at a time.
type Renderer interface {
	Process(frames int, left, right []float32)
}

// bytesPerFrame is 16-bit interleaved stereo.
const bytesPerFrame = 4

// Stream implements io.Reader for Ebitengine/audio.
// Each Read pulls frames from the renderer and converts them to int16.
type Stream struct {
	mu       sync.Mutex
	renderer Renderer
	left     []float32
	right    []float32
	frames   int64
	stopped  bool
}

// NewStream creates a Stream reading from r.
func NewStream(r Renderer) *Stream {
	return &Stream{renderer: r}
}

// Read implements io.Reader. A stopped stream returns silence.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	n := frames * bytesPerFrame

	if s.stopped || s.renderer == nil {
		clear(p[:n])
		return n, nil
	}

	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	left, right := s.left[:frames], s.right[:frames]
	clear(left)
	clear(right)

	s.renderer.Process(frames, left, right)
	s.frames += int64(frames)

	encodePCM(p, left, right)
	return n, nil
}

// Stop makes every further Read return silence.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Frames returns the number of frames rendered so far.
func (s *Stream) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// encodePCM writes left/right as interleaved little-endian int16.
func encodePCM(p []byte, left, right []float32) {
	for i := range left {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame+2:], uint16(r))
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
