package app

// ModeKind is the action chosen for one invocation.
type ModeKind int

const (
	ModePlay ModeKind = iota
	ModeRender
	ModeDaemon
	ModeStop
	ModeShutdown
	ModeUnsupported
)

func (k ModeKind) String() string {
	switch k {
	case ModePlay:
		return "play"
	case ModeRender:
		return "render"
	case ModeDaemon:
		return "daemon"
	case ModeStop:
		return "stop"
	case ModeShutdown:
		return "shutdown"
	case ModeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Options mirrors the command line.
type Options struct {
	Input    string
	Server   bool
	Stop     bool
	Shutdown bool
	Verbose  bool
	Output   string
}

type Mode struct {
	Kind   ModeKind
	Input  string
	Output string
}

// SelectMode applies the flag precedence: an output path always renders;
// otherwise --server, --stop and --shutdown win in that order; otherwise
// the input is played. Paths that need the daemon endpoint become
// ModeUnsupported when the platform has none.
func SelectMode(opts Options, ipcSupported bool) Mode {
	if opts.Output != "" {
		return Mode{Kind: ModeRender, Input: opts.Input, Output: opts.Output}
	}
	var m Mode
	switch {
	case opts.Server:
		m = Mode{Kind: ModeDaemon}
	case opts.Stop:
		m = Mode{Kind: ModeStop}
	case opts.Shutdown:
		m = Mode{Kind: ModeShutdown}
	default:
		m = Mode{Kind: ModePlay, Input: opts.Input}
	}
	if !ipcSupported {
		return Mode{Kind: ModeUnsupported, Input: m.Input}
	}
	return m
}
