package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// VerbosityConfig gates informational output. It is built once from the
// parsed flags and shared by pointer. Errors never go through it.
type VerbosityConfig struct {
	SuppressOutput bool
	Verbose        bool
	out            io.Writer
}

// NewVerbosityConfig silences informational lines for a daemon that was not
// asked to be verbose.
func NewVerbosityConfig(server, verbose bool, out io.Writer) *VerbosityConfig {
	if out == nil {
		out = os.Stdout
	}
	return &VerbosityConfig{SuppressOutput: server && !verbose, Verbose: verbose, out: out}
}

func (v *VerbosityConfig) Println(msg string) {
	if v.SuppressOutput {
		return
	}
	fmt.Fprintln(v.out, msg)
}

// Logger builds the daemon's structured logger. Suppressed configurations
// discard everything; verbose ones include debug records.
func (v *VerbosityConfig) Logger(w io.Writer) *slog.Logger {
	if v.SuppressOutput {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := slog.LevelInfo
	if v.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
