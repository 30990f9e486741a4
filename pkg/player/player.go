package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// DefaultBufferSize keeps the device latency low enough for live input.
const DefaultBufferSize = 50 * time.Millisecond

var (
	sharedCtx     *audio.Context
	sharedCtxOnce sync.Once
	sharedCtxRate int
)

// Context returns the process-wide audio context, creating it at sampleRate on
// first use. Ebitengine allows only one context per process.
func Context(sampleRate int) (*audio.Context, error) {
	sharedCtxOnce.Do(func() {
		sharedCtx = audio.NewContext(sampleRate)
		sharedCtxRate = sampleRate
	})
	if sharedCtxRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz, requested %d Hz", sharedCtxRate, sampleRate)
	}
	return sharedCtx, nil
}

// Player plays a Renderer on the audio device.
type Player struct {
	mu     sync.Mutex
	stream *Stream
	player *audio.Player
}

// New creates a stopped Player for r on ctx.
func New(ctx *audio.Context, r Renderer) (*Player, error) {
	stream := NewStream(r)
	p, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	p.SetBufferSize(DefaultBufferSize)
	return &Player{stream: stream, player: p}, nil
}

// Play starts pulling audio from the renderer.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.Play()
}

// Pause suspends the device without discarding the stream position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.Pause()
}

// IsPlaying reports whether the device is pulling audio.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player.IsPlaying()
}

// SetVolume sets the device volume in [0, 1].
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.SetVolume(v)
}

// Frames returns the number of frames rendered so far.
func (p *Player) Frames() int64 {
	return p.stream.Frames()
}

// Close silences the stream and releases the device player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stream.Stop()
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("failed to close audio player: %w", err)
	}
	return nil
}
