//go:build !noaudio

package audio

import (
	"sync"

	"github.com/pkg/errors"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// RealtimeAvailable reports whether this build can open an output device.
const RealtimeAvailable = true

// ebiten allows one context per process, so every Output shares it at
// DeviceRate.
var deviceContext = sync.OnceValue(func() *ebitaudio.Context {
	return ebitaudio.NewContext(DeviceRate)
})

// Output is a device stream pulling float32 frames from a SampleSource at
// DeviceRate.
type Output struct {
	player *ebitaudio.Player
	stream *StreamReader
}

// OpenOutput prepares a device stream fed by source. Nothing sounds until
// Start.
func OpenOutput(source SampleSource) (*Output, error) {
	stream := NewStreamReader(source)
	pl, err := deviceContext().NewPlayerF32(stream)
	if err != nil {
		return nil, errors.Wrapf(err, "open %d Hz output stream", DeviceRate)
	}
	return &Output{player: pl, stream: stream}, nil
}

func (o *Output) Start() { o.player.Play() }

// Frames returns how many frames the device has pulled so far.
func (o *Output) Frames() int64 { return o.stream.Frames() }

// Close silences the stream and detaches it from the source.
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return errors.Wrap(err, "close output stream")
	}
	return o.stream.Close()
}
