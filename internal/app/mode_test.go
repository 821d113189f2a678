package app

import (
	"bytes"
	"testing"
)

func TestSelectModePrecedence(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want ModeKind
	}{
		{"output wins", Options{Output: "o.wav", Server: true, Stop: true, Input: "cde"}, ModeRender},
		{"server before stop", Options{Server: true, Stop: true}, ModeDaemon},
		{"stop before shutdown", Options{Stop: true, Shutdown: true}, ModeStop},
		{"shutdown", Options{Shutdown: true, Input: "cde"}, ModeShutdown},
		{"play", Options{Input: "cde"}, ModePlay},
		{"play without input", Options{}, ModePlay},
		{"verbose alone plays", Options{Verbose: true, Input: "c"}, ModePlay},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SelectMode(c.opts, true).Kind; got != c.want {
				t.Fatalf("SelectMode = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSelectModeWithoutEndpoint(t *testing.T) {
	for _, opts := range []Options{{Server: true}, {Stop: true}, {Shutdown: true}, {Input: "cde"}} {
		if got := SelectMode(opts, false).Kind; got != ModeUnsupported {
			t.Fatalf("SelectMode(%+v) = %v, want unsupported", opts, got)
		}
	}
	if got := SelectMode(Options{Output: "a.wav", Input: "c"}, false).Kind; got != ModeRender {
		t.Fatalf("render needs no endpoint, got %v", got)
	}
}

func TestVerbosityGate(t *testing.T) {
	cases := []struct {
		server, verbose, suppress bool
	}{
		{false, false, false},
		{false, true, false},
		{true, false, true},
		{true, true, false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		v := NewVerbosityConfig(c.server, c.verbose, &out)
		if v.SuppressOutput != c.suppress {
			t.Fatalf("server=%v verbose=%v: suppress = %v", c.server, c.verbose, v.SuppressOutput)
		}
		v.Println("hello")
		if (out.Len() == 0) != c.suppress {
			t.Fatalf("server=%v verbose=%v: output %q", c.server, c.verbose, out.String())
		}
	}
}

func TestVerbosityLoggerFollowsGate(t *testing.T) {
	var out bytes.Buffer
	NewVerbosityConfig(true, false, nil).Logger(&out).Info("quiet")
	if out.Len() != 0 {
		t.Fatalf("suppressed logger wrote %q", out.String())
	}
	NewVerbosityConfig(true, true, nil).Logger(&out).Debug("loud")
	if !bytes.Contains(out.Bytes(), []byte("loud")) {
		t.Fatalf("verbose logger dropped debug record")
	}
}
