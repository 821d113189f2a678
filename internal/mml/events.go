package mml

import (
	"fmt"
	"sort"
)

type trackState struct {
	cfg        Config
	tick       int
	octave     int
	length     int // default length in ticks
	volume     int
	gate       int // q1..q8, eighths of the step that sound
	tiePending bool
	lastNote   int // index into events of the previous note, -1 if none
	expanded   int
	events     []Event
}

// ToEvents is the third pass: it walks the AST and lays out absolute-tick
// events per track. Tempo changes may appear in any track.
func ToEvents(ast *AST, cfg Config) (*Score, error) {
	score := &Score{Resolution: cfg.Resolution}
	for ti, nodes := range ast.Tracks {
		st := &trackState{
			cfg:      cfg,
			octave:   cfg.DefaultOctave,
			length:   lengthTicks(cfg.DefaultLength, 0, cfg.Resolution),
			volume:   cfg.DefaultVolume,
			gate:     8,
			lastNote: -1,
		}
		if err := st.walk(nodes); err != nil {
			return nil, fmt.Errorf("track %d: %w", ti, err)
		}
		sort.SliceStable(st.events, func(i, j int) bool {
			return st.events[i].Tick < st.events[j].Tick
		})
		score.Tracks = append(score.Tracks, Track{Events: st.events, EndTick: st.tick})
	}
	return score, nil
}

func (st *trackState) walk(nodes []Node) error {
	for _, n := range nodes {
		if n.Loop {
			for rep := 0; rep < n.Repeat; rep++ {
				if err := st.count(n.Token.Pos); err != nil {
					return err
				}
				if err := st.walk(n.Body); err != nil {
					return err
				}
				if rep < n.Repeat-1 {
					if err := st.walk(n.Tail); err != nil {
						return err
					}
				}
				if st.tick > st.cfg.MaxLoopTicks {
					return fmt.Errorf("loop expansion too long at %d", n.Token.Pos)
				}
			}
			continue
		}
		if err := st.count(n.Token.Pos); err != nil {
			return err
		}
		if err := st.apply(n.Token); err != nil {
			return err
		}
	}
	return nil
}

func (st *trackState) count(pos int) error {
	st.expanded++
	if st.cfg.MaxExpanded > 0 && st.expanded > st.cfg.MaxExpanded {
		return fmt.Errorf("loop expansion too long at %d", pos)
	}
	return nil
}

func (st *trackState) apply(tok Token) error {
	res := st.cfg.Resolution
	switch tok.Kind {
	case TokNote:
		dur := st.length
		if tok.HasValue || tok.Dots > 0 {
			base := tok.Value
			if !tok.HasValue {
				base = res * 4 / st.length
			}
			d, err := checkedLength(base, tok.Dots, res, tok.Pos)
			if err != nil {
				return err
			}
			dur = d
		}
		note := (st.octave+1)*12 + noteOffsets[tok.Note] + tok.Accidental
		if note < 0 || note > 127 {
			return fmt.Errorf("note out of range at %d", tok.Pos)
		}
		if st.tiePending && st.lastNote >= 0 && st.events[st.lastNote].Note == note {
			prev := &st.events[st.lastNote]
			prev.Duration = st.tick + dur - prev.Tick
			st.tick += dur
			st.tiePending = false
			return nil
		}
		gated := dur * st.gate / 8
		if st.tiePending || gated <= 0 {
			gated = dur
		}
		st.events = append(st.events, Event{
			Type:     EventNote,
			Tick:     st.tick,
			Duration: gated,
			Note:     note,
			Velocity: volumeToVelocity(st.volume),
		})
		st.lastNote = len(st.events) - 1
		st.tiePending = false
		st.tick += dur
	case TokRest:
		dur := st.length
		if tok.HasValue || tok.Dots > 0 {
			base := tok.Value
			if !tok.HasValue {
				base = res * 4 / st.length
			}
			d, err := checkedLength(base, tok.Dots, res, tok.Pos)
			if err != nil {
				return err
			}
			dur = d
		}
		st.tick += dur
		st.tiePending = false
	case TokTie:
		if st.lastNote < 0 {
			return fmt.Errorf("tie without a preceding note at %d", tok.Pos)
		}
		if tok.HasValue {
			d, err := checkedLength(tok.Value, tok.Dots, res, tok.Pos)
			if err != nil {
				return err
			}
			prev := &st.events[st.lastNote]
			prev.Duration = st.tick + d - prev.Tick
			st.tick += d
			return nil
		}
		// full-length previous note, joined with the next one
		prev := &st.events[st.lastNote]
		prev.Duration = st.tick - prev.Tick
		st.tiePending = true
	case TokLength:
		d, err := checkedLength(tok.Value, tok.Dots, res, tok.Pos)
		if err != nil {
			return err
		}
		st.length = d
	case TokOctave:
		if !tok.HasValue || tok.Value < st.cfg.MinOctave || tok.Value > st.cfg.MaxOctave {
			return fmt.Errorf("octave out of range at %d", tok.Pos)
		}
		st.octave = tok.Value
	case TokOctaveUp:
		st.octave = clampInt(st.octave+1, st.cfg.MinOctave, st.cfg.MaxOctave)
	case TokOctaveDown:
		st.octave = clampInt(st.octave-1, st.cfg.MinOctave, st.cfg.MaxOctave)
	case TokTempo:
		if !tok.HasValue || tok.Value < 1 || tok.Value > 999 {
			return fmt.Errorf("tempo out of range at %d", tok.Pos)
		}
		st.events = append(st.events, Event{Type: EventTempo, Tick: st.tick, Value: tok.Value})
	case TokVolume:
		if !tok.HasValue {
			return fmt.Errorf("missing volume at %d", tok.Pos)
		}
		st.volume = clampInt(tok.Value, 0, 15)
		st.events = append(st.events, Event{Type: EventVolume, Tick: st.tick, Value: st.volume})
	case TokProgram:
		if !tok.HasValue {
			return fmt.Errorf("missing program number at %d", tok.Pos)
		}
		st.events = append(st.events, Event{Type: EventProgram, Tick: st.tick, Value: clampInt(tok.Value, 0, 127)})
	case TokPan:
		// p1 left, p2 right, p3 center
		pan := 64
		switch tok.Value {
		case 1:
			pan = 0
		case 2:
			pan = 127
		}
		st.events = append(st.events, Event{Type: EventPan, Tick: st.tick, Value: pan})
	case TokQuantize:
		st.gate = clampInt(tok.Value, 1, 8)
	}
	return nil
}

// lengthTicks converts an MML length (4 = quarter) with dots into ticks.
func lengthTicks(length, dots, resolution int) int {
	if length <= 0 {
		return 0
	}
	d := resolution * 4 / length
	add := d
	for i := 0; i < dots; i++ {
		add /= 2
		d += add
	}
	return d
}

func checkedLength(length, dots, resolution, pos int) (int, error) {
	if length < 1 || length > resolution*4 {
		return 0, fmt.Errorf("invalid length %d at %d", length, pos)
	}
	return lengthTicks(length, dots, resolution), nil
}

func volumeToVelocity(v int) int {
	return clampInt(v*127/15, 1, 127)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
