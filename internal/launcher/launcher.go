// Package launcher starts the playback daemon as a detached copy of the
// running executable.
package launcher

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// ServerFlag is the argument that puts the executable into daemon mode.
const ServerFlag = "--server"

// Launcher spawns the daemon. The zero value re-executes the current
// binary with ServerFlag.
type Launcher struct {
	// Executable resolves the program to run; os.Executable when nil.
	Executable func() (string, error)
	// Args replaces the default ServerFlag argument list when non-nil.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
}

// SpawnDetached starts the daemon without waiting for it. The child gets no
// stdio from this process and lives in its own session or process group,
// so it outlives the caller and ignores the caller's console signals.
func (l *Launcher) SpawnDetached() error {
	resolve := l.Executable
	if resolve == nil {
		resolve = os.Executable
	}
	exe, err := resolve()
	if err != nil {
		return errors.Wrap(err, "Failed to get current executable path")
	}
	args := l.Args
	if args == nil {
		args = []string{ServerFlag}
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "Failed to spawn server process")
	}
	// the child is never waited on
	if err := cmd.Process.Release(); err != nil {
		return errors.Wrap(err, "release server process")
	}
	return nil
}
