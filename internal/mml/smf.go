package mml

import (
	"bytes"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	maxChannels = 16
	ccVolume    = 7
	ccPan       = 10
)

type timedMessage struct {
	tick  int
	order int // note-offs sort before anything else on the same tick
	seq   int
	msg   smf.Message
}

// ToSMF is the fourth pass: it encodes the score as a format 1 Standard MIDI
// File. Track 0 is a conductor track holding every tempo change; MML track
// n plays on MIDI channel n.
func ToSMF(score *Score) ([]byte, error) {
	if len(score.Tracks) > maxChannels {
		return nil, fmt.Errorf("too many tracks: %d (max %d)", len(score.Tracks), maxChannels)
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(uint16(score.Resolution))

	var tempos []timedMessage
	tracks := make([][]timedMessage, len(score.Tracks))
	for ti, tr := range score.Tracks {
		ch := uint8(ti)
		for _, ev := range tr.Events {
			switch ev.Type {
			case EventNote:
				tracks[ti] = append(tracks[ti],
					timedMessage{tick: ev.Tick, order: 1, msg: smf.Message(midi.NoteOn(ch, uint8(ev.Note), uint8(ev.Velocity)))},
					timedMessage{tick: ev.Tick + ev.Duration, order: 0, msg: smf.Message(midi.NoteOff(ch, uint8(ev.Note)))},
				)
			case EventTempo:
				tempos = append(tempos, timedMessage{tick: ev.Tick, msg: smf.MetaTempo(float64(ev.Value))})
			case EventProgram:
				tracks[ti] = append(tracks[ti], timedMessage{tick: ev.Tick, order: 1, msg: smf.Message(midi.ProgramChange(ch, uint8(ev.Value)))})
			case EventPan:
				tracks[ti] = append(tracks[ti], timedMessage{tick: ev.Tick, order: 1, msg: smf.Message(midi.ControlChange(ch, ccPan, uint8(ev.Value)))})
			case EventVolume:
				tracks[ti] = append(tracks[ti], timedMessage{tick: ev.Tick, order: 1, msg: smf.Message(midi.ControlChange(ch, ccVolume, uint8(ev.Value*127/15)))})
			}
		}
	}

	if err := s.Add(buildTrack(tempos)); err != nil {
		return nil, fmt.Errorf("failed to add conductor track: %w", err)
	}
	for ti, msgs := range tracks {
		if err := s.Add(buildTrack(msgs)); err != nil {
			return nil, fmt.Errorf("failed to add track %d: %w", ti, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

func buildTrack(msgs []timedMessage) smf.Track {
	for i := range msgs {
		msgs[i].seq = i
	}
	sort.Slice(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if a.tick != b.tick {
			return a.tick < b.tick
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.seq < b.seq
	})
	var track smf.Track
	last := 0
	for _, m := range msgs {
		track.Add(uint32(m.tick-last), m.msg)
		last = m.tick
	}
	track.Close(0)
	return track
}

// Compile runs all four passes and returns SMF bytes.
func Compile(src string) ([]byte, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	ast, err := BuildAST(tokens)
	if err != nil {
		return nil, err
	}
	score, err := ToEvents(ast, DefaultConfig())
	if err != nil {
		return nil, err
	}
	return ToSMF(score)
}
