// Package daemon is the long-running playback server. It owns the audio
// device and accepts play, stop and shutdown requests over the IPC socket.
package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	ym2151play "github.com/cbegin/ym2151play-go"
	"github.com/cbegin/ym2151play-go/internal/ipc"
)

// Playback is one song sounding on the device.
type Playback interface {
	Play() error
	Stop() error
}

// PlaybackFactory builds a playback from an event log payload.
type PlaybackFactory func(payload string) (Playback, error)

// DevicePlayback parses the payload and prepares it for the real-time
// device.
func DevicePlayback(payload string) (Playback, error) {
	p, err := ym2151play.NewPlayerFromJSON(payload)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type Daemon struct {
	socketPath string
	factory    PlaybackFactory
	logger     *slog.Logger

	// playMu serializes play_json so only one playback is ever started
	// without being recorded in current. stop does not take it.
	playMu sync.Mutex

	mu      sync.Mutex
	current Playback
	cancel  context.CancelFunc
}

type Option func(*Daemon)

func WithSocketPath(path string) Option {
	return func(d *Daemon) { d.socketPath = path }
}

func WithPlaybackFactory(f PlaybackFactory) Option {
	return func(d *Daemon) { d.factory = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

func New(opts ...Option) *Daemon {
	d := &Daemon{factory: DevicePlayback, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run serves requests until ctx is cancelled or a shutdown request arrives.
// It fails immediately when another daemon already owns the socket.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	srv := ipc.NewServer(d.socketPath, ipc.HandlerFunc(d.Handle), d.logger)
	if err := srv.Start(ctx); err != nil {
		return errors.Wrap(err, "start server")
	}
	d.logger.Info("server ready", "socket", srv.SocketPath())

	<-ctx.Done()
	srv.Stop()
	d.stopCurrent()
	d.logger.Info("server exited")
	return nil
}

// Handle executes a single request.
func (d *Daemon) Handle(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandPlayJSON:
		pb, err := d.factory(req.Data)
		if err != nil {
			d.logger.Warn("rejected event log", "err", err)
			return ipc.Fail(err.Error())
		}
		if err := d.replaceCurrent(pb); err != nil {
			d.logger.Error("playback failed", "err", err)
			return ipc.Fail(err.Error())
		}
		d.logger.Info("playing", "bytes", len(req.Data))
		return ipc.OK("playing")
	case ipc.CommandStop:
		d.stopCurrent()
		d.logger.Info("stopped")
		return ipc.OK("stopped")
	case ipc.CommandShutdown:
		d.stopCurrent()
		d.logger.Info("shutdown requested")
		d.mu.Lock()
		cancel := d.cancel
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return ipc.OK("shutting down")
	default:
		return ipc.Fail("unknown command: " + string(req.Command))
	}
}

func (d *Daemon) replaceCurrent(pb Playback) error {
	d.playMu.Lock()
	defer d.playMu.Unlock()
	d.stopCurrent()
	if err := pb.Play(); err != nil {
		return err
	}
	d.mu.Lock()
	d.current = pb
	d.mu.Unlock()
	return nil
}

func (d *Daemon) stopCurrent() {
	d.mu.Lock()
	pb := d.current
	d.current = nil
	d.mu.Unlock()
	if pb == nil {
		return
	}
	if err := pb.Stop(); err != nil {
		d.logger.Warn("stop playback", "err", err)
	}
}
