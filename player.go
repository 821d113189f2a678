package ym2151play

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	intaudio "github.com/cbegin/ym2151play-go/internal/audio"
	"github.com/cbegin/ym2151play-go/internal/eventlog"
	"github.com/cbegin/ym2151play-go/internal/ym2151"
)

// NativeSampleRate is the YM2151 output rate (3.579545 MHz / 64).
const NativeSampleRate = ym2151.SampleRate

// DeviceSampleRate is the rate the real-time output device is opened at.
const DeviceSampleRate = intaudio.DeviceRate

const defaultTailSeconds = 5.0

type PlayerOption func(*playerConfig)

type playerConfig struct {
	tailSeconds float64
	gain        float64
	sampleTap   func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{tailSeconds: defaultTailSeconds, gain: 0.5}
}

// WithTailLimit bounds how long the release tail may ring after the last
// register write.
func WithTailLimit(seconds float64) PlayerOption {
	return func(cfg *playerConfig) {
		if seconds >= 0 {
			cfg.tailSeconds = seconds
		}
	}
}

// WithGain sets the chip output gain.
func WithGain(gain float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.gain = gain
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player replays a register event log through the emulated chip at the
// native rate. It is an audio SampleSource and FinishingSource.
type Player struct {
	mu         sync.Mutex
	chip       *ym2151.Chip
	events     []eventlog.Event
	cursor     int
	frame      int64
	tailFrames int64
	tailLimit  int64
	sampleTap  func([]float32)
	finished   atomic.Bool

	liveMu sync.Mutex
	device *intaudio.Output
	done   chan struct{}
}

func NewPlayer(log *eventlog.Log, opts ...PlayerOption) (*Player, error) {
	if log == nil {
		return nil, errors.New("event log is nil")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	chip := ym2151.New(NativeSampleRate)
	chip.SetGain(cfg.gain)
	events := make([]eventlog.Event, len(log.Events))
	copy(events, log.Events)
	return &Player{
		chip:      chip,
		events:    events,
		tailLimit: int64(cfg.tailSeconds * NativeSampleRate),
		sampleTap: cfg.sampleTap,
	}, nil
}

// NewPlayerFromJSON parses an event log and builds a player for it.
func NewPlayerFromJSON(data string, opts ...PlayerOption) (*Player, error) {
	log, err := eventlog.ParseString(data)
	if err != nil {
		return nil, err
	}
	return NewPlayer(log, opts...)
}

// SampleRate reports the rate Process renders at.
func (p *Player) SampleRate() int { return NativeSampleRate }

// Process applies every register write due at each frame and renders
// interleaved stereo into dst. Once playback finishes dst is zero-filled.
func (p *Player) Process(dst []float32) {
	p.mu.Lock()
	for i := 0; i+1 < len(dst); i += 2 {
		if p.finished.Load() {
			dst[i], dst[i+1] = 0, 0
			continue
		}
		for p.cursor < len(p.events) && p.events[p.cursor].Sample(NativeSampleRate) <= p.frame {
			ev := p.events[p.cursor]
			p.chip.Write(ev.Addr, ev.Data)
			p.cursor++
		}
		dst[i], dst[i+1] = p.chip.RenderFrame()
		p.frame++
		if p.cursor >= len(p.events) {
			p.tailFrames++
			if !p.chip.Busy() || p.tailFrames >= p.tailLimit {
				p.finished.Store(true)
			}
		}
	}
	tap := p.sampleTap
	p.mu.Unlock()
	if tap != nil {
		tap(dst)
	}
	if p.finished.Load() {
		p.signalDone()
	}
}

// ShouldContinueTail reports whether more audio is pending: events not yet
// applied, or a release still sounding within the tail limit.
func (p *Player) ShouldContinueTail() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished.Load() {
		return false
	}
	if p.cursor < len(p.events) {
		return true
	}
	return p.chip.Busy() && p.tailFrames < p.tailLimit
}

func (p *Player) Finished() bool {
	return p.finished.Load()
}

// Position returns the number of native frames rendered so far.
func (p *Player) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Play starts real-time playback on the output device. The chip output is
// resampled to DeviceSampleRate.
func (p *Player) Play() error {
	if !intaudio.RealtimeAvailable {
		return intaudio.ErrNoDevice
	}
	p.liveMu.Lock()
	defer p.liveMu.Unlock()
	if p.device != nil {
		return errors.New("player is already playing")
	}
	out, err := intaudio.OpenOutput(NewResampler(p, NativeSampleRate, DeviceSampleRate))
	if err != nil {
		return errors.Wrap(err, "open audio device")
	}
	p.done = make(chan struct{})
	p.device = out
	out.Start()
	return nil
}

// Stop halts real-time playback and releases the device.
func (p *Player) Stop() error {
	p.liveMu.Lock()
	device, done := p.device, p.done
	p.device, p.done = nil, nil
	p.liveMu.Unlock()
	if device == nil {
		return nil
	}
	err := device.Close()
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until real-time playback finishes or is stopped. It returns
// immediately if nothing is playing.
func (p *Player) Wait() {
	p.liveMu.Lock()
	done := p.done
	p.liveMu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Player) signalDone() {
	p.liveMu.Lock()
	done := p.done
	p.done = nil
	p.liveMu.Unlock()
	if done != nil {
		close(done)
	}
}
