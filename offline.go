package ym2151play

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	intaudio "github.com/cbegin/ym2151play-go/internal/audio"
)

// PullFrames is the number of output frames requested per pull when
// rendering offline.
const PullFrames = 2048

const resamplerChunk = 256

// Resampler converts a stereo SampleSource to another rate by linear
// interpolation. It is itself a SampleSource.
type Resampler struct {
	src  intaudio.SampleSource
	step float64
	frac float64
	cur  [2]float32
	nxt  [2]float32
	buf  []float32
	pos  int
	init bool
}

func NewResampler(src intaudio.SampleSource, inRate, outRate int) *Resampler {
	return &Resampler{
		src:  src,
		step: float64(inRate) / float64(outRate),
		buf:  make([]float32, 0, resamplerChunk*2),
	}
}

func (r *Resampler) readFrame() [2]float32 {
	if r.pos >= len(r.buf) {
		r.buf = r.buf[:resamplerChunk*2]
		r.src.Process(r.buf)
		r.pos = 0
	}
	f := [2]float32{r.buf[r.pos], r.buf[r.pos+1]}
	r.pos += 2
	return f
}

func (r *Resampler) Process(dst []float32) {
	if !r.init {
		r.cur = r.readFrame()
		r.nxt = r.readFrame()
		r.init = true
	}
	for i := 0; i+1 < len(dst); i += 2 {
		for r.frac >= 1 {
			r.cur = r.nxt
			r.nxt = r.readFrame()
			r.frac--
		}
		t := float32(r.frac)
		dst[i] = r.cur[0] + (r.nxt[0]-r.cur[0])*t
		dst[i+1] = r.cur[1] + (r.nxt[1]-r.cur[1])*t
		r.frac += r.step
	}
}

// Finished reports whether the wrapped source has finished.
func (r *Resampler) Finished() bool {
	if fs, ok := r.src.(intaudio.FinishingSource); ok {
		return fs.Finished()
	}
	return false
}

// RenderAll renders the whole log at rate, pulling PullFrames at a time
// while the player reports more tail.
func RenderAll(p *Player, rate int) []float32 {
	var src intaudio.SampleSource = p
	if rate != NativeSampleRate {
		src = NewResampler(p, NativeSampleRate, rate)
	}
	buf := make([]float32, PullFrames*2)
	var out []float32
	for p.ShouldContinueTail() {
		src.Process(buf)
		out = append(out, buf...)
	}
	return out
}

// WriteWAV writes interleaved stereo samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, rate int) error {
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  rate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(float64(clampSample(s)) * 32767))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return errors.Wrapf(err, "finalize %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// WritePlayerWAV renders p at the native rate and writes it to path in one
// call.
func WritePlayerWAV(path string, p *Player) error {
	return WriteWAV(path, RenderAll(p, NativeSampleRate), NativeSampleRate)
}

// CaptureRealtime drains p through the same stream reader the output device
// consumes and returns the decoded native-rate samples.
func CaptureRealtime(p *Player) ([]float32, error) {
	r := intaudio.NewStreamReader(p)
	defer r.Close()
	chunk := make([]byte, PullFrames*intaudio.BytesPerFrame)
	var out []float32
	for {
		n, err := r.Read(chunk)
		for i := 0; i+4 <= n; i += 4 {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:])))
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, errors.Wrap(err, "read audio stream")
		}
	}
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
