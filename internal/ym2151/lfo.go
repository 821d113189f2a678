package ym2151

import "math"

// LFO waveforms as selected by register 0x1B bits 0-1.
const (
	WaveSaw      = 0
	WaveSquare   = 1
	WaveTriangle = 2
	WaveNoise    = 3
)

// lfo is the chip-global low-frequency oscillator. It produces a value in
// [-1, 1]; per-channel sensitivity and the PMD/AMD depths scale it.
type lfo struct {
	rateHz   float64
	waveform int
	phase    float64 // [0, 1)
	randVal  float64
}

// setFrequency maps the 8-bit LFRQ value onto roughly 0.008 Hz .. 52.9 Hz.
func (l *lfo) setFrequency(lfrq uint8) {
	l.rateHz = 52.9 * math.Pow(2, (float64(lfrq)-255)/20)
}

func (l *lfo) setWaveform(w int) {
	if w < 0 || w > 3 {
		w = WaveSaw
	}
	l.waveform = w
}

func (l *lfo) reset() {
	l.phase = 0
	l.randVal = 0
}

// sample advances one frame and returns the unscaled waveform value.
func (l *lfo) sample(sampleRate float64) float64 {
	if l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.waveform {
	case WaveSaw:
		v = 1.0 - 2.0*l.phase
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case WaveNoise:
		v = l.randVal
	default:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	}

	old := l.phase
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}
	// sample-and-hold refresh once per cycle
	if l.waveform == WaveNoise && l.phase < old {
		l.randVal = math.Sin(l.phase*12345.6789+l.randVal*67890.1234) * 2.0
		l.randVal -= math.Floor(l.randVal)
		l.randVal = l.randVal*2.0 - 1.0
	}
	return v
}
