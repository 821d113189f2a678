package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"

	"github.com/cbegin/ym2151play-go/internal/convert"
	"github.com/cbegin/ym2151play-go/internal/input"
)

func TestArtifactBaseStripsOneSuffix(t *testing.T) {
	cases := map[string]string{
		"foo.wav":     "foo",
		"foo":         "foo",
		"a.wav.wav":   "a.wav",
		"song.WAV":    "song.WAV",
		"dir/out.wav": "dir/out",
		".wav":        "",
	}
	for in, want := range cases {
		if got := ArtifactBase(in); got != want {
			t.Fatalf("ArtifactBase(%q) = %q, want %q", in, got, want)
		}
	}
	rt, d48, d55 := ArtifactPaths("a.wav.wav")
	if rt != "a.wav_realtime.wav" || d48 != "a.wav_debug48k.wav" || d55 != "a.wav_debug55k.wav" {
		t.Fatalf("paths = %s %s %s", rt, d48, d55)
	}
}

func eventLogFor(t *testing.T, src string) string {
	t.Helper()
	js, err := convert.ToEventLog(input.Input{Kind: input.MMLText, Text: src}, NewVerbosityConfig(true, false, nil))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	return js
}

func decodeWAV(t *testing.T, path string) (rate int, samples int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("%s: %d channels %d bits", path, dec.NumChans, dec.BitDepth)
	}
	return int(dec.SampleRate), len(buf.Data)
}

func TestFileRendererWritesThreeArtifacts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "foo.wav")
	var stdout bytes.Buffer
	r := &FileRenderer{Realtime: true}
	if err := r.Render(eventLogFor(t, "l16 cde"), out, NewVerbosityConfig(false, false, &stdout)); err != nil {
		t.Fatalf("render: %v", err)
	}
	base := strings.TrimSuffix(out, ".wav")
	want := map[string]int{
		base + "_realtime.wav": 55930,
		base + "_debug48k.wav": 48000,
		base + "_debug55k.wav": 55930,
	}
	for path, rate := range want {
		gotRate, n := decodeWAV(t, path)
		if gotRate != rate {
			t.Fatalf("%s: rate %d, want %d", path, gotRate, rate)
		}
		if n == 0 || n%2 != 0 {
			t.Fatalf("%s: %d samples, want a non-zero even count", path, n)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 3 {
		t.Fatalf("expected exactly 3 files, got %d", len(entries))
	}
}

func TestFileRendererSkipsRealtimeWithoutDevice(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bar")
	var stdout bytes.Buffer
	r := &FileRenderer{Realtime: false}
	if err := r.Render(eventLogFor(t, "c16"), out, NewVerbosityConfig(false, false, &stdout)); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := os.Stat(out + "_realtime.wav"); !os.IsNotExist(err) {
		t.Fatalf("realtime artifact written without a device")
	}
	if !strings.Contains(stdout.String(), "Skipping") {
		t.Fatalf("missing skip notice in %q", stdout.String())
	}
	for _, suffix := range []string{"_debug48k.wav", "_debug55k.wav"} {
		if _, err := os.Stat(out + suffix); err != nil {
			t.Fatalf("missing %s: %v", suffix, err)
		}
	}
}

func TestFileRendererRejectsBadLog(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bad.wav")
	err := NewFileRenderer().Render(`{"events": "nope"}`, out, NewVerbosityConfig(false, false, &bytes.Buffer{}))
	if err == nil {
		t.Fatalf("expected render error for malformed log")
	}
}
