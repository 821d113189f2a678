// Package ym2151 is a register-level emulation of the Yamaha YM2151 (OPM)
// FM synthesis chip. It favours readable floating-point math over
// cycle-exact accuracy.
package ym2151

import (
	"math"
)

const (
	// ClockHz is the master clock of the common 3.58 MHz board design.
	ClockHz = 3579545
	// SampleRate is the chip's native output rate (clock / 64).
	SampleRate = ClockHz / 64

	numChannels = 8
	numOps      = 4

	twoPi    = math.Pi * 2
	maxAtten = 96.0 // dB; envelope floor
	modScale = twoPi
)

// Operator slots in register order (M1, M2, C1, C2 at offsets 0, 8, 16, 24).
const (
	slotM1 = iota
	slotM2
	slotC1
	slotC2
)

// Key-on mask bits of register 0x08 for each slot.
var keyOnBits = [numOps]uint8{slotM1: 0x08, slotM2: 0x20, slotC1: 0x10, slotC2: 0x40}

var dt2Cents = [4]float64{0, 600, 781, 950}

// pmsCents is the pitch modulation sensitivity range per PMS value.
var pmsCents = [8]float64{0, 5, 10, 20, 50, 100, 400, 700}

// amsDB is the amplitude modulation sensitivity range per AMS value.
var amsDB = [4]float64{0, 23.9, 47.8, 95.6}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type operator struct {
	dt1   int
	mul   int
	tl    int
	ks    int
	ar    int
	amsEn bool
	d1r   int
	dt2   int
	d2r   int
	d1l   int
	rr    int

	phase    float64
	atten    float64 // envelope attenuation in dB
	envState envState
	keyOn    bool
	out      float64
}

type channel struct {
	left, right bool
	fb          int
	con         int
	kc          uint8
	kf          uint8
	pms         int
	ams         int
	ops         [numOps]operator
	fbHist      [2]float64
}

// Chip holds the full register file and synthesis state.
type Chip struct {
	sampleRate float64
	regs       [256]uint8
	ch         [numChannels]channel
	lfo        lfo
	pmd        int
	amd        int
	noiseOn    bool
	noiseLFSR  uint32
	gain       float64
}

// New returns a chip rendering at sampleRate. Pass SampleRate for the
// native rate.
func New(sampleRate int) *Chip {
	c := &Chip{
		sampleRate: float64(sampleRate),
		noiseLFSR:  0x7FFF,
		gain:       0.5,
	}
	c.Reset()
	return c
}

// Reset silences every operator and clears the register file.
func (c *Chip) Reset() {
	c.regs = [256]uint8{}
	for i := range c.ch {
		c.ch[i] = channel{left: true, right: true}
		for oi := range c.ch[i].ops {
			c.ch[i].ops[oi].atten = maxAtten
			c.ch[i].ops[oi].envState = envOff
		}
	}
	c.lfo = lfo{}
	c.pmd, c.amd = 0, 0
	c.noiseOn = false
}

// SetGain sets the output scalar applied after mixing.
func (c *Chip) SetGain(g float64) {
	if g < 0 {
		g = 0
	}
	c.gain = g
}

// Register returns the last value written to addr.
func (c *Chip) Register(addr uint8) uint8 {
	return c.regs[addr]
}

// Write performs a register write.
func (c *Chip) Write(addr, data uint8) {
	c.regs[addr] = data
	switch {
	case addr == 0x01:
		if data&0x02 != 0 {
			c.lfo.reset()
		}
	case addr == 0x08:
		c.keyOn(int(data&0x07), data)
	case addr == 0x0F:
		c.noiseOn = data&0x80 != 0
	case addr == 0x18:
		c.lfo.setFrequency(data)
	case addr == 0x19:
		if data&0x80 != 0 {
			c.pmd = int(data & 0x7F)
		} else {
			c.amd = int(data & 0x7F)
		}
	case addr == 0x1B:
		c.lfo.setWaveform(int(data & 0x03))
	case addr >= 0x20 && addr < 0x28:
		ch := &c.ch[addr&0x07]
		ch.right = data&0x80 != 0
		ch.left = data&0x40 != 0
		ch.fb = int(data>>3) & 0x07
		ch.con = int(data & 0x07)
	case addr >= 0x28 && addr < 0x30:
		c.ch[addr&0x07].kc = data & 0x7F
	case addr >= 0x30 && addr < 0x38:
		c.ch[addr&0x07].kf = data >> 2
	case addr >= 0x38 && addr < 0x40:
		ch := &c.ch[addr&0x07]
		ch.pms = int(data>>4) & 0x07
		ch.ams = int(data & 0x03)
	case addr >= 0x40:
		c.writeOperator(addr, data)
	}
}

func (c *Chip) writeOperator(addr, data uint8) {
	base := addr & 0xE0
	idx := int(addr & 0x1F)
	op := &c.ch[idx&0x07].ops[idx>>3]
	switch base {
	case 0x40:
		op.dt1 = int(data>>4) & 0x07
		op.mul = int(data & 0x0F)
	case 0x60:
		op.tl = int(data & 0x7F)
	case 0x80:
		op.ks = int(data >> 6)
		op.ar = int(data & 0x1F)
	case 0xA0:
		op.amsEn = data&0x80 != 0
		op.d1r = int(data & 0x1F)
	case 0xC0:
		op.dt2 = int(data >> 6)
		op.d2r = int(data & 0x1F)
	case 0xE0:
		op.d1l = int(data >> 4)
		op.rr = int(data & 0x0F)
	}
}

func (c *Chip) keyOn(chIdx int, data uint8) {
	ch := &c.ch[chIdx]
	for slot := 0; slot < numOps; slot++ {
		op := &ch.ops[slot]
		on := data&keyOnBits[slot] != 0
		switch {
		case on && !op.keyOn:
			op.keyOn = true
			op.phase = 0
			op.envState = envAttack
		case !on && op.keyOn:
			op.keyOn = false
			if op.envState != envOff {
				op.envState = envRelease
			}
		}
	}
	if data&0x78 != 0 {
		ch.fbHist = [2]float64{}
	}
}

// Busy reports whether any operator envelope is still audible.
func (c *Chip) Busy() bool {
	for i := range c.ch {
		for oi := range c.ch[i].ops {
			if c.ch[i].ops[oi].envState != envOff {
				return true
			}
		}
	}
	return false
}

// RenderFrame produces one stereo frame.
func (c *Chip) RenderFrame() (float32, float32) {
	lfoVal := c.lfo.sample(c.sampleRate)
	var l, r float64
	for i := range c.ch {
		ch := &c.ch[i]
		active := false
		for oi := range ch.ops {
			c.advanceEnvelope(ch, &ch.ops[oi])
			if ch.ops[oi].envState != envOff {
				active = true
			}
		}
		if !active {
			continue
		}
		sig := c.renderChannel(i, ch, lfoVal) * 0.25
		if ch.left {
			l += sig
		}
		if ch.right {
			r += sig
		}
		c.advancePhases(ch, lfoVal)
	}
	l *= c.gain
	r *= c.gain
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (c *Chip) opLevel(ch *channel, op *operator, lfoVal float64) float64 {
	att := op.atten + float64(op.tl)*0.75
	if op.amsEn && ch.ams > 0 && c.amd > 0 {
		// AM only attenuates; map the LFO to [0, 1]
		att += (lfoVal + 1) * 0.5 * amsDB[ch.ams] * float64(c.amd) / 127.0
	}
	if att >= maxAtten {
		return 0
	}
	return math.Pow(10, -att/20)
}

func (c *Chip) opSample(ch *channel, slot int, mod float64, lfoVal float64, noise bool) float64 {
	op := &ch.ops[slot]
	if op.envState == envOff {
		op.out = 0
		return 0
	}
	lvl := c.opLevel(ch, op, lfoVal)
	var s float64
	if noise {
		c.noiseLFSR = (c.noiseLFSR >> 1) ^ (-(c.noiseLFSR & 1) & 0xB400)
		s = (float64(c.noiseLFSR)/float64(0x7FFF)*2.0 - 1.0) * lvl
	} else {
		s = math.Sin(op.phase+mod*modScale) * lvl
	}
	op.out = s
	return s
}

// renderChannel evaluates the operator network selected by CON.
func (c *Chip) renderChannel(idx int, ch *channel, lfoVal float64) float64 {
	var fbMod float64
	if ch.fb > 0 {
		fbMod = (ch.fbHist[0] + ch.fbHist[1]) / 2 * math.Pow(2, float64(ch.fb-1)) / 32
	}
	m1 := c.opSample(ch, slotM1, fbMod, lfoVal, false)
	ch.fbHist[1] = ch.fbHist[0]
	ch.fbHist[0] = m1

	noise := c.noiseOn && idx == numChannels-1
	var out float64
	switch ch.con {
	case 0: // M1 -> C1 -> M2 -> C2
		c1 := c.opSample(ch, slotC1, m1, lfoVal, false)
		m2 := c.opSample(ch, slotM2, c1, lfoVal, false)
		out = c.opSample(ch, slotC2, m2, lfoVal, noise)
	case 1: // (M1 + C1) -> M2 -> C2
		c1 := c.opSample(ch, slotC1, 0, lfoVal, false)
		m2 := c.opSample(ch, slotM2, m1+c1, lfoVal, false)
		out = c.opSample(ch, slotC2, m2, lfoVal, noise)
	case 2: // (M1 + (C1 -> M2)) -> C2
		c1 := c.opSample(ch, slotC1, 0, lfoVal, false)
		m2 := c.opSample(ch, slotM2, c1, lfoVal, false)
		out = c.opSample(ch, slotC2, m1+m2, lfoVal, noise)
	case 3: // ((M1 -> C1) + M2) -> C2
		c1 := c.opSample(ch, slotC1, m1, lfoVal, false)
		m2 := c.opSample(ch, slotM2, 0, lfoVal, false)
		out = c.opSample(ch, slotC2, c1+m2, lfoVal, noise)
	case 4: // (M1 -> C1) + (M2 -> C2)
		c1 := c.opSample(ch, slotC1, m1, lfoVal, false)
		m2 := c.opSample(ch, slotM2, 0, lfoVal, false)
		out = c1 + c.opSample(ch, slotC2, m2, lfoVal, noise)
	case 5: // M1 modulates C1, M2 and C2
		out = c.opSample(ch, slotC1, m1, lfoVal, false) +
			c.opSample(ch, slotM2, m1, lfoVal, false) +
			c.opSample(ch, slotC2, m1, lfoVal, noise)
	case 6: // (M1 -> C1) + M2 + C2
		out = c.opSample(ch, slotC1, m1, lfoVal, false) +
			c.opSample(ch, slotM2, 0, lfoVal, false) +
			c.opSample(ch, slotC2, 0, lfoVal, noise)
	default: // 7: all carriers
		out = m1 +
			c.opSample(ch, slotC1, 0, lfoVal, false) +
			c.opSample(ch, slotM2, 0, lfoVal, false) +
			c.opSample(ch, slotC2, 0, lfoVal, noise)
	}
	return out
}

func (c *Chip) advancePhases(ch *channel, lfoVal float64) {
	base := KeyCodeToFreq(ch.kc, ch.kf)
	if ch.pms > 0 && c.pmd > 0 {
		cents := lfoVal * pmsCents[ch.pms] * float64(c.pmd) / 127.0
		base *= math.Pow(2, cents/1200)
	}
	for oi := range ch.ops {
		op := &ch.ops[oi]
		if op.envState == envOff {
			continue
		}
		mul := float64(op.mul)
		if op.mul == 0 {
			mul = 0.5
		}
		f := base * mul * math.Pow(2, dt2Cents[op.dt2]/1200)
		if op.dt1 != 0 {
			d := float64(op.dt1 & 0x03)
			if op.dt1&0x04 != 0 {
				d = -d
			}
			f *= 1 + d*0.0005
		}
		op.phase += twoPi * f / c.sampleRate
		if op.phase > twoPi {
			op.phase -= twoPi
		}
	}
}

// effectiveRate combines a 5-bit envelope rate with key scaling into 0..63.
func effectiveRate(rate int, ks int, kc uint8) int {
	if rate == 0 {
		return 0
	}
	r := rate*2 + int(kc>>2)>>(3-ks)
	if r > 63 {
		r = 63
	}
	return r
}

// rateSeconds returns the time a full 96 dB sweep takes at effective rate r.
func rateSeconds(r int, span float64) float64 {
	if r < 4 {
		return math.Inf(1)
	}
	return span * math.Pow(2, -float64(r-4)/4)
}

func (c *Chip) advanceEnvelope(ch *channel, op *operator) {
	switch op.envState {
	case envAttack:
		r := effectiveRate(op.ar, op.ks, ch.kc)
		if r >= 62 {
			op.atten = 0
		} else {
			sec := rateSeconds(r, 2.5)
			if math.IsInf(sec, 1) {
				return
			}
			op.atten -= maxAtten / (sec * c.sampleRate)
		}
		if op.atten <= 0 {
			op.atten = 0
			op.envState = envDecay
		}
	case envDecay:
		sl := float64(op.d1l) * 3
		if op.d1l == 15 {
			sl = maxAtten
		}
		if op.atten >= sl {
			op.envState = envSustain
			return
		}
		op.atten += c.decayStep(effectiveRate(op.d1r, op.ks, ch.kc))
		if op.atten >= sl {
			op.atten = sl
			op.envState = envSustain
		}
	case envSustain:
		op.atten += c.decayStep(effectiveRate(op.d2r, op.ks, ch.kc))
		if op.atten >= maxAtten {
			op.atten = maxAtten
		}
	case envRelease:
		op.atten += c.decayStep(effectiveRate(op.rr*2+1, op.ks, ch.kc))
		if op.atten >= maxAtten {
			op.atten = maxAtten
			op.envState = envOff
		}
	case envOff:
		op.atten = maxAtten
	}
}

func (c *Chip) decayStep(r int) float64 {
	sec := rateSeconds(r, 30)
	if math.IsInf(sec, 1) {
		return 0
	}
	return maxAtten / (sec * c.sampleRate)
}

// KeyCodeToFreq converts a KC/KF register pair into a frequency in Hz.
// KC bits 4-6 hold the octave, bits 0-3 the note code (C# .. C).
func KeyCodeToFreq(kc, kf uint8) float64 {
	oct := int(kc>>4) & 0x07
	nc := int(kc & 0x0F)
	idx := nc - nc/4
	midi := float64((oct+1)*12+idx+1) + float64(kf&0x3F)/64
	return 440 * math.Pow(2, (midi-69)/12)
}

// NoteToKeyCode maps a MIDI note number onto KC and KF register values.
// Notes outside the chip's range are clamped to octave 0 or 7.
func NoteToKeyCode(note int) (kc uint8, kf uint8) {
	n := note - 1
	oct := n/12 - 1
	semi := n % 12
	if n < 0 {
		oct, semi = 0, 0
	}
	if oct < 0 {
		oct, semi = 0, 0
	}
	if oct > 7 {
		oct, semi = 7, 11
	}
	code := semi + semi/3
	return uint8(oct<<4 | code), 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
