package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cbegin/ym2151play-go/internal/ipc"
)

// trace collects the order of side effects across fakes.
type trace struct {
	calls []string
}

type fakeClient struct {
	tr       *trace
	payloads []string
	sendErrs []error
	stopErr  error
	shutErr  error
	stops    int
	shuts    int
}

func (c *fakeClient) SendPayload(p string) error {
	c.tr.calls = append(c.tr.calls, "send")
	c.payloads = append(c.payloads, p)
	if len(c.sendErrs) == 0 {
		return nil
	}
	err := c.sendErrs[0]
	c.sendErrs = c.sendErrs[1:]
	return err
}

func (c *fakeClient) SendStop() error {
	c.tr.calls = append(c.tr.calls, "stop")
	c.stops++
	return c.stopErr
}

func (c *fakeClient) SendShutdown() error {
	c.tr.calls = append(c.tr.calls, "shutdown")
	c.shuts++
	return c.shutErr
}

type fakeLauncher struct {
	tr     *trace
	spawns int
	err    error
}

func (l *fakeLauncher) SpawnDetached() error {
	l.tr.calls = append(l.tr.calls, "spawn")
	l.spawns++
	return l.err
}

type fakeServer struct {
	runs int
}

func (s *fakeServer) Run(ctx context.Context) error {
	s.runs++
	return nil
}

type fakeRenderer struct {
	payload, output string
}

func (r *fakeRenderer) Render(payload, output string, v *VerbosityConfig) error {
	r.payload, r.output = payload, output
	return nil
}

type harness struct {
	app      *App
	tr       *trace
	client   *fakeClient
	launcher *fakeLauncher
	server   *fakeServer
	renderer *fakeRenderer
	stdout   *bytes.Buffer
	diag     *bytes.Buffer
	slept    []time.Duration
}

func newHarness() *harness {
	h := &harness{tr: &trace{}, stdout: &bytes.Buffer{}, diag: &bytes.Buffer{}}
	h.client = &fakeClient{tr: h.tr}
	h.launcher = &fakeLauncher{tr: h.tr}
	h.server = &fakeServer{}
	h.renderer = &fakeRenderer{}
	h.app = &App{
		Client:   h.client,
		Launcher: h.launcher,
		Server:   h.server,
		Renderer: h.renderer,
		Sleep: func(d time.Duration) {
			h.tr.calls = append(h.tr.calls, "sleep "+d.String())
			h.slept = append(h.slept, d)
		},
		Supported:  true,
		Diagnostic: h.diag,
	}
	return h
}

func (h *harness) run(opts Options) error {
	v := NewVerbosityConfig(opts.Server, opts.Verbose, h.stdout)
	return h.app.Run(context.Background(), opts, v)
}

func absentErr() error {
	return &ipc.TransportError{Kind: ipc.NotListening, Op: "dial", Err: syscall.ENOENT}
}

func wrapSend(err error) error {
	return pkgerrors.Wrap(err, "Failed to send JSON to server")
}

func TestPlayWithRunningDaemon(t *testing.T) {
	h := newHarness()
	if err := h.run(Options{Input: "cde"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.client.payloads) != 1 || !strings.Contains(h.client.payloads[0], `"events"`) {
		t.Fatalf("expected one JSON payload, got %d", len(h.client.payloads))
	}
	if h.launcher.spawns != 0 {
		t.Fatalf("daemon spawned while already running")
	}
	if !strings.Contains(h.stdout.String(), "Operation completed.") {
		t.Fatalf("missing completion line in %q", h.stdout.String())
	}
}

func TestPlayLaunchesAbsentDaemonOnce(t *testing.T) {
	h := newHarness()
	h.client.sendErrs = []error{absentErr(), nil}
	if err := h.run(Options{Input: "cde"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"send", "spawn", "sleep 500ms", "send"}
	if strings.Join(h.tr.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", h.tr.calls, want)
	}
	if h.client.payloads[0] != h.client.payloads[1] {
		t.Fatalf("retry sent a different payload")
	}
}

func TestPlayRetriesOnlyOnce(t *testing.T) {
	h := newHarness()
	h.client.sendErrs = []error{absentErr(), absentErr(), absentErr()}
	err := h.run(Options{Input: "cde"})
	if err == nil {
		t.Fatalf("expected second failure to surface")
	}
	if len(h.client.payloads) != 2 || h.launcher.spawns != 1 {
		t.Fatalf("sends = %d spawns = %d, want 2 and 1", len(h.client.payloads), h.launcher.spawns)
	}
	if h.diag.Len() == 0 {
		t.Fatalf("transport failure should print a diagnostic dump")
	}
}

func TestPlaySurfacesOtherTransportErrors(t *testing.T) {
	h := newHarness()
	broken := &ipc.TransportError{Kind: ipc.ConnectedFailed, Op: "write request", Err: syscall.EPIPE}
	h.client.sendErrs = []error{wrapSend(broken)}
	err := h.run(Options{Input: "cde"})
	if err == nil || !strings.Contains(err.Error(), "Failed to send JSON to server") {
		t.Fatalf("expected chained send error, got %v", err)
	}
	if h.launcher.spawns != 0 || len(h.client.payloads) != 1 {
		t.Fatalf("non-absent error must not launch or retry")
	}
	if !strings.Contains(h.diag.String(), "broken pipe") {
		t.Fatalf("diagnostic dump missing cause: %q", h.diag.String())
	}
}

func TestPlaySpawnFailureStops(t *testing.T) {
	h := newHarness()
	h.client.sendErrs = []error{absentErr()}
	h.launcher.err = errors.New("Failed to spawn server process")
	if err := h.run(Options{Input: "cde"}); err == nil || !strings.Contains(err.Error(), "spawn") {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if len(h.client.payloads) != 1 || len(h.slept) != 0 {
		t.Fatalf("no retry after a failed spawn")
	}
}

func TestStopDoesNotLaunch(t *testing.T) {
	h := newHarness()
	h.client.stopErr = absentErr()
	if err := h.run(Options{Stop: true}); err == nil {
		t.Fatalf("stop with no daemon should fail")
	}
	if h.client.stops != 1 || h.launcher.spawns != 0 || len(h.client.payloads) != 0 {
		t.Fatalf("calls = %v", h.tr.calls)
	}
}

func TestShutdownAndServerModes(t *testing.T) {
	h := newHarness()
	if err := h.run(Options{Shutdown: true}); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if h.client.shuts != 1 {
		t.Fatalf("shutdown not sent")
	}
	if err := h.run(Options{Server: true}); err != nil {
		t.Fatalf("server: %v", err)
	}
	if h.server.runs != 1 {
		t.Fatalf("server not run")
	}
	if strings.Contains(h.stdout.String(), "Running in server mode") {
		t.Fatalf("quiet server printed its banner")
	}
	if err := h.run(Options{Server: true, Verbose: true}); err != nil {
		t.Fatalf("verbose server: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "Running in server mode (idle state)") {
		t.Fatalf("verbose server should print its banner")
	}
}

func TestRenderPassesPayloadAndOutput(t *testing.T) {
	h := newHarness()
	if err := h.run(Options{Input: "cde", Output: "foo.wav", Server: true, Stop: true}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if h.renderer.output != "foo.wav" || h.renderer.payload == "" {
		t.Fatalf("renderer got %+v", h.renderer)
	}
	if len(h.tr.calls) != 0 {
		t.Fatalf("render must not touch the daemon: %v", h.tr.calls)
	}
}

func TestMissingInputNamesArgument(t *testing.T) {
	for _, opts := range []Options{{}, {Output: "x.wav"}} {
		h := newHarness()
		err := h.run(opts)
		if !errors.Is(err, ErrMissingInput) || !strings.Contains(err.Error(), "INPUT") {
			t.Fatalf("expected missing INPUT error, got %v", err)
		}
	}
}

func TestConversionErrorsStopBeforeTransport(t *testing.T) {
	h := newHarness()
	if err := h.run(Options{Input: "[c"}); err == nil {
		t.Fatalf("expected conversion error")
	}
	if len(h.tr.calls) != 0 {
		t.Fatalf("daemon contacted after failed conversion: %v", h.tr.calls)
	}
}

func TestSuppressedGateSilencesPlayFlow(t *testing.T) {
	h := newHarness()
	h.client.sendErrs = []error{absentErr(), wrapSend(&ipc.TransportError{Kind: ipc.ConnectedFailed, Op: "read response", Err: syscall.ECONNRESET})}
	v := NewVerbosityConfig(true, false, h.stdout)
	err := h.app.Dispatch(context.Background(), Mode{Kind: ModePlay, Input: "cde"}, v)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if h.stdout.Len() != 0 {
		t.Fatalf("suppressed gate leaked %q", h.stdout.String())
	}
	if h.diag.Len() == 0 {
		t.Fatalf("diagnostics must ignore the gate")
	}

	h = newHarness()
	v = NewVerbosityConfig(true, false, h.stdout)
	if err := h.app.Dispatch(context.Background(), Mode{Kind: ModePlay, Input: "cde"}, v); err != nil {
		t.Fatalf("play: %v", err)
	}
	if h.stdout.Len() != 0 {
		t.Fatalf("suppressed gate leaked %q", h.stdout.String())
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	h := newHarness()
	h.app.Supported = false
	err := h.run(Options{Server: true})
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected unsupported platform error, got %v", err)
	}
	if !strings.Contains(err.Error(), "--server/--stop/--shutdown") {
		t.Fatalf("message should name the flags: %v", err)
	}
	if h.server.runs != 0 {
		t.Fatalf("server ran on unsupported platform")
	}
	if err := h.run(Options{Input: "cde", Output: "x.wav"}); err != nil {
		t.Fatalf("render should work without the daemon endpoint: %v", err)
	}
}
