//go:build noaudio

package audio

const RealtimeAvailable = false

// Output is never opened in this build.
type Output struct{}

func OpenOutput(SampleSource) (*Output, error) { return nil, ErrNoDevice }

func (o *Output) Start()        {}
func (o *Output) Frames() int64 { return 0 }
func (o *Output) Close() error  { return nil }
