// Package smf2log converts Standard MIDI Files into YM2151 register event
// logs. MIDI notes are spread over the chip's eight monophonic channels.
package smf2log

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/ym2151play-go/internal/eventlog"
	"github.com/cbegin/ym2151play-go/internal/ym2151"
)

const (
	numVoices         = 8
	defaultUSPerQuart = 500000
	ccVolume          = 7
	ccPan             = 10
)

var (
	ErrNoNotes     = errors.New("no note events in MIDI data")
	ErrUnsupported = errors.New("SMPTE time format is not supported")
)

type absEvent struct {
	tick  int64
	track int
	idx   int
	msg   smf.Message
}

type midiChannel struct {
	program int
	volume  int
	pan     uint8 // RL bits for register 0x20
}

type voice struct {
	active  bool
	midiCh  int
	note    int
	patch   int // program loaded into the channel, -1 if none
	started int64
}

type converter struct {
	log      *eventlog.Log
	channels [16]midiChannel
	voices   [numVoices]voice
	seq      int64
	notes    int
}

// Convert parses SMF bytes and produces the register event log.
func Convert(data []byte) (*eventlog.Log, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse MIDI")
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupported
	}
	resolution := float64(mt.Resolution())
	if resolution <= 0 {
		return nil, errors.New("invalid MIDI resolution")
	}

	var events []absEvent
	for ti, track := range s.Tracks {
		var tick int64
		for i, ev := range track {
			tick += int64(ev.Delta)
			events = append(events, absEvent{tick: tick, track: ti, idx: i, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.tick != b.tick {
			return a.tick < b.tick
		}
		if a.track != b.track {
			return a.track < b.track
		}
		return a.idx < b.idx
	})

	c := newConverter()
	usPerQuarter := float64(defaultUSPerQuart)
	var lastTick int64
	var now float64
	for _, ev := range events {
		now += float64(ev.tick-lastTick) * usPerQuarter / 1e6 / resolution
		lastTick = ev.tick

		var bpm float64
		if ev.msg.GetMetaTempo(&bpm) && bpm > 0 {
			usPerQuarter = 60000000 / bpm
			continue
		}
		c.handle(now, midi.Message(ev.msg))
	}
	if c.notes == 0 {
		return nil, ErrNoNotes
	}
	c.releaseAll(now)
	return c.log, nil
}

// ConvertJSON is Convert followed by canonical JSON encoding.
func ConvertJSON(data []byte) (string, error) {
	log, err := Convert(data)
	if err != nil {
		return "", err
	}
	out, err := log.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "encode event log")
	}
	return string(out), nil
}

func newConverter() *converter {
	c := &converter{log: &eventlog.Log{}}
	for i := range c.channels {
		c.channels[i] = midiChannel{volume: 100, pan: 0xC0}
	}
	// chip-wide defaults: LFO off, noise off, all channels keyed off
	c.log.Add(0, 0x01, 0x02)
	c.log.Add(0, 0x01, 0x00)
	c.log.Add(0, 0x0F, 0x00)
	c.log.Add(0, 0x18, 0x00)
	c.log.Add(0, 0x19, 0x00)
	c.log.Add(0, 0x19, 0x80)
	c.log.Add(0, 0x1B, 0x00)
	for ch := 0; ch < numVoices; ch++ {
		c.log.Add(0, 0x08, uint8(ch))
		c.writePatch(0, ch, 0, 0xC0)
		c.voices[ch].patch = 0
	}
	return c
}

func (c *converter) handle(t float64, msg midi.Message) {
	var ch, key, vel, ctl, val, prog uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		c.noteOn(t, int(ch), int(key), int(vel))
	case msg.GetNoteEnd(&ch, &key):
		c.noteOff(t, int(ch), int(key))
	case msg.GetProgramChange(&ch, &prog):
		c.channels[ch].program = int(prog)
	case msg.GetControlChange(&ch, &ctl, &val):
		switch ctl {
		case ccVolume:
			c.channels[ch].volume = int(val)
		case ccPan:
			c.channels[ch].pan = panBits(val)
		}
	}
}

func panBits(v uint8) uint8 {
	switch {
	case v < 43:
		return 0x40
	case v > 85:
		return 0x80
	default:
		return 0xC0
	}
}

// allocate prefers an idle voice that last played the same MIDI channel,
// then any idle voice, then steals the oldest sounding voice.
func (c *converter) allocate(midiCh int) int {
	idle := -1
	for i := range c.voices {
		v := &c.voices[i]
		if v.active {
			continue
		}
		if v.midiCh == midiCh {
			return i
		}
		if idle < 0 {
			idle = i
		}
	}
	if idle >= 0 {
		return idle
	}
	oldest := 0
	for i := range c.voices {
		if c.voices[i].started < c.voices[oldest].started {
			oldest = i
		}
	}
	return oldest
}

func (c *converter) noteOn(t float64, midiCh, note, vel int) {
	c.notes++
	c.seq++
	idx := c.allocate(midiCh)
	v := &c.voices[idx]
	if v.active {
		c.log.Add(t, 0x08, uint8(idx))
	}
	mc := c.channels[midiCh]
	if v.patch != mc.program {
		c.writePatch(t, idx, mc.program, mc.pan)
		v.patch = mc.program
	}
	p := bankPatch(mc.program)
	c.log.Add(t, 0x20+uint8(idx), mc.pan|uint8(p.FB&7)<<3|uint8(p.CON&7))

	eff := vel * mc.volume / 127
	atten := (127 - eff) / 4
	for _, slot := range carriers[p.CON&7] {
		tl := p.Ops[slot].TL + atten
		if tl > 127 {
			tl = 127
		}
		c.log.Add(t, 0x60+uint8(slot*8+idx), uint8(tl))
	}

	kc, kf := ym2151.NoteToKeyCode(note)
	c.log.Add(t, 0x28+uint8(idx), kc)
	c.log.Add(t, 0x30+uint8(idx), kf<<2)
	c.log.Add(t, 0x08, 0x78|uint8(idx))
	*v = voice{active: true, midiCh: midiCh, note: note, patch: v.patch, started: c.seq}
}

func (c *converter) noteOff(t float64, midiCh, note int) {
	for i := range c.voices {
		v := &c.voices[i]
		if v.active && v.midiCh == midiCh && v.note == note {
			c.log.Add(t, 0x08, uint8(i))
			v.active = false
			return
		}
	}
}

func (c *converter) releaseAll(t float64) {
	for i := range c.voices {
		if c.voices[i].active {
			c.log.Add(t, 0x08, uint8(i))
			c.voices[i].active = false
		}
	}
}

func (c *converter) writePatch(t float64, ch int, program int, pan uint8) {
	p := bankPatch(program)
	c.log.Add(t, 0x20+uint8(ch), pan|uint8(p.FB&7)<<3|uint8(p.CON&7))
	c.log.Add(t, 0x38+uint8(ch), 0x00)
	for slot, op := range p.Ops {
		off := uint8(slot*8 + ch)
		amsen := uint8(0)
		if op.AMSEN {
			amsen = 0x80
		}
		c.log.Add(t, 0x40+off, uint8(op.DT1&7)<<4|uint8(op.MUL&15))
		c.log.Add(t, 0x60+off, uint8(op.TL&127))
		c.log.Add(t, 0x80+off, uint8(op.KS&3)<<6|uint8(op.AR&31))
		c.log.Add(t, 0xA0+off, amsen|uint8(op.D1R&31))
		c.log.Add(t, 0xC0+off, uint8(op.DT2&3)<<6|uint8(op.D2R&31))
		c.log.Add(t, 0xE0+off, uint8(op.D1L&15)<<4|uint8(op.RR&15))
	}
}
