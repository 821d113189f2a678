// Package app selects what an invocation does and drives it: playing
// through the daemon (launching it when needed), controlling it, running
// it, or rendering WAV files offline.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/ym2151play-go/internal/convert"
	"github.com/cbegin/ym2151play-go/internal/input"
	"github.com/cbegin/ym2151play-go/internal/ipc"
)

// SpawnDelay is the fixed wait between launching the daemon and retrying
// the payload.
const SpawnDelay = 500 * time.Millisecond

var (
	ErrMissingInput        = errors.New("INPUT is required unless using --server, --stop, or --shutdown")
	ErrUnsupportedPlatform = errors.New("--server/--stop/--shutdown are not supported on this platform")
)

// Client talks to the daemon.
type Client interface {
	SendPayload(payload string) error
	SendStop() error
	SendShutdown() error
}

// Launcher starts the daemon in the background.
type Launcher interface {
	SpawnDetached() error
}

// ServerRunner runs the daemon in the foreground until it is shut down.
type ServerRunner interface {
	Run(ctx context.Context) error
}

// Renderer writes the offline artifacts for an event log.
type Renderer interface {
	Render(payload, output string, v *VerbosityConfig) error
}

// App holds the collaborators of one invocation.
type App struct {
	Client     Client
	Launcher   Launcher
	Server     ServerRunner
	Renderer   Renderer
	Sleep      func(time.Duration)
	Classify   func(arg string) (input.Input, error)
	IsAbsent   func(err error) bool
	Supported  bool
	Diagnostic io.Writer
}

// Run selects the mode for opts and executes it.
func (a *App) Run(ctx context.Context, opts Options, v *VerbosityConfig) error {
	return a.Dispatch(ctx, SelectMode(opts, a.Supported), v)
}

func (a *App) Dispatch(ctx context.Context, m Mode, v *VerbosityConfig) error {
	switch m.Kind {
	case ModeDaemon:
		v.Println("Running in server mode (idle state)")
		return a.Server.Run(ctx)
	case ModeStop:
		v.Println("Sending stop command to server...")
		return a.transport(a.Client.SendStop())
	case ModeShutdown:
		v.Println("Sending shutdown command to server...")
		return a.transport(a.Client.SendShutdown())
	case ModeRender:
		payload, err := a.eventLog(m.Input, v)
		if err != nil {
			return err
		}
		if err := a.Renderer.Render(payload, m.Output, v); err != nil {
			return err
		}
		v.Println("Operation completed.")
		return nil
	case ModePlay:
		payload, err := a.eventLog(m.Input, v)
		if err != nil {
			return err
		}
		if err := a.play(payload, v); err != nil {
			return err
		}
		v.Println("Operation completed.")
		return nil
	case ModeUnsupported:
		return errors.Wrapf(ErrUnsupportedPlatform, "%s/%s", runtime.GOOS, runtime.GOARCH)
	default:
		return errors.Errorf("unknown mode %v", m.Kind)
	}
}

// play delivers the payload, launching the daemon at most once when nothing
// is listening and retrying the send exactly once after SpawnDelay.
func (a *App) play(payload string, v *VerbosityConfig) error {
	err := a.Client.SendPayload(payload)
	if err == nil {
		return nil
	}
	if !a.isAbsent(err) {
		return a.transport(err)
	}
	v.Println("Server is not running. Starting server...")
	if err := a.Launcher.SpawnDetached(); err != nil {
		return err
	}
	a.sleep(SpawnDelay)
	return a.transport(a.Client.SendPayload(payload))
}

func (a *App) eventLog(arg string, v *VerbosityConfig) (string, error) {
	if arg == "" {
		return "", ErrMissingInput
	}
	classify := a.Classify
	if classify == nil {
		classify = input.Classify
	}
	in, err := classify(arg)
	if err != nil {
		return "", err
	}
	return convert.ToEventLog(in, v)
}

// transport prints the full error chain for IPC failures regardless of the
// verbosity gate and passes the error on.
func (a *App) transport(err error) error {
	if err == nil {
		return nil
	}
	w := a.Diagnostic
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "%+v\n", err)
	return err
}

func (a *App) isAbsent(err error) bool {
	if a.IsAbsent == nil {
		return ipc.IsEndpointAbsent(err)
	}
	return a.IsAbsent(err)
}

func (a *App) sleep(d time.Duration) {
	if a.Sleep == nil {
		time.Sleep(d)
		return
	}
	a.Sleep(d)
}
