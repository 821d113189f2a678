package mml

type EventType int

const (
	EventNote EventType = iota + 1
	EventTempo
	EventProgram
	EventPan
	EventVolume
)

type Event struct {
	Type     EventType
	Tick     int
	Duration int // sounding length for notes (after gate)
	Note     int
	Velocity int
	Value    int
}

type Track struct {
	Events  []Event
	EndTick int
}

// Score is the third pass output with absolute tick positions.
type Score struct {
	Resolution int
	Tracks     []Track
}

type Config struct {
	Resolution    int
	DefaultBPM    int
	DefaultLength int
	DefaultOctave int
	MinOctave     int
	MaxOctave     int
	DefaultVolume int
	MaxLoopTicks  int
	// MaxExpanded bounds the commands and loop passes a track may expand to,
	// covering loops whose bodies never advance time.
	MaxExpanded int
}

func DefaultConfig() Config {
	return Config{
		Resolution:    480,
		DefaultBPM:    120,
		DefaultLength: 4,
		DefaultOctave: 4,
		MinOctave:     0,
		MaxOctave:     8,
		DefaultVolume: 12,
		MaxLoopTicks:  480 * 4 * 2000,
		MaxExpanded:   1 << 20,
	}
}
