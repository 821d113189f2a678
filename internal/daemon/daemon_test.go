package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/ym2151play-go/internal/ipc"
)

type fakePlayback struct {
	mu      sync.Mutex
	payload string
	delay   time.Duration
	playing bool
	stops   int
}

func (p *fakePlayback) Play() error {
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return nil
}

func (p *fakePlayback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.stops++
	return nil
}

func (p *fakePlayback) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

type fakeDevice struct {
	mu        sync.Mutex
	playDelay time.Duration
	created   []*fakePlayback
}

func (f *fakeDevice) factory(payload string) (Playback, error) {
	if payload == "bad" {
		return nil, errors.New("event log does not match schema")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pb := &fakePlayback{payload: payload, delay: f.playDelay}
	f.created = append(f.created, pb)
	return pb, nil
}

func (f *fakeDevice) all() []*fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePlayback(nil), f.created...)
}

func startDaemon(t *testing.T, dev *fakeDevice) (string, <-chan error, context.CancelFunc) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ymd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "d.sock")

	d := New(
		WithSocketPath(path),
		WithPlaybackFactory(dev.factory),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	c := ipc.NewClient(path)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := c.Do(ipc.Request{Command: "ping"}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(cancel)
	return path, done, cancel
}

func TestDaemonPlayStopShutdown(t *testing.T) {
	dev := &fakeDevice{}
	path, done, _ := startDaemon(t, dev)
	c := ipc.NewClient(path)

	if err := c.SendPayload("first"); err != nil {
		t.Fatalf("play first: %v", err)
	}
	if err := c.SendPayload("second"); err != nil {
		t.Fatalf("play second: %v", err)
	}
	pbs := dev.all()
	if len(pbs) != 2 || pbs[0].isPlaying() || !pbs[1].isPlaying() {
		t.Fatalf("new payload should replace the current playback")
	}
	if pbs[1].payload != "second" {
		t.Fatalf("payload = %q", pbs[1].payload)
	}

	if err := c.SendStop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if pbs[1].isPlaying() {
		t.Fatalf("stop did not stop playback")
	}

	if err := c.SendShutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("daemon did not exit after shutdown")
	}
	if err := c.SendStop(); !ipc.IsEndpointAbsent(err) {
		t.Fatalf("endpoint should be gone after shutdown, got %v", err)
	}
}

func TestDaemonRejectsBadPayload(t *testing.T) {
	dev := &fakeDevice{}
	path, _, _ := startDaemon(t, dev)
	c := ipc.NewClient(path)
	if err := c.SendPayload("first"); err != nil {
		t.Fatal(err)
	}
	err := c.SendPayload("bad")
	if err == nil || !strings.Contains(err.Error(), "does not match schema") {
		t.Fatalf("expected schema rejection, got %v", err)
	}
	if !dev.all()[0].isPlaying() {
		t.Fatalf("a rejected payload must not interrupt current playback")
	}
}

func TestSecondDaemonFails(t *testing.T) {
	path, _, _ := startDaemon(t, &fakeDevice{})
	d := New(WithSocketPath(path), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := d.Run(context.Background())
	if !errors.Is(err, ipc.ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}
}

func TestDaemonExitsOnContextCancel(t *testing.T) {
	_, done, cancel := startDaemon(t, &fakeDevice{})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("daemon ignored cancellation")
	}
}

func TestConcurrentPlayLeavesOneCurrentPlayback(t *testing.T) {
	dev := &fakeDevice{playDelay: 50 * time.Millisecond}
	d := New(
		WithPlaybackFactory(dev.factory),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	var wg sync.WaitGroup
	for _, payload := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			if resp := d.Handle(ipc.Request{Command: ipc.CommandPlayJSON, Data: payload}); resp.Status != ipc.StatusOK {
				t.Errorf("play %s: %s", payload, resp.Message)
			}
		}(payload)
	}
	wg.Wait()

	playing := 0
	for _, pb := range dev.all() {
		if pb.isPlaying() {
			playing++
		}
	}
	if playing != 1 {
		t.Fatalf("%d playbacks sounding after overlapping plays, want 1", playing)
	}

	d.Handle(ipc.Request{Command: ipc.CommandStop})
	for i, pb := range dev.all() {
		if pb.isPlaying() {
			t.Fatalf("playback %d still sounding after stop", i)
		}
	}
}
