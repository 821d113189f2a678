package app

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	ym2151play "github.com/cbegin/ym2151play-go"
	intaudio "github.com/cbegin/ym2151play-go/internal/audio"
)

// ArtifactBase strips exactly one trailing ".wav" from output.
func ArtifactBase(output string) string {
	return strings.TrimSuffix(output, ".wav")
}

// ArtifactPaths returns the realtime, 48 kHz and native-rate file names.
func ArtifactPaths(output string) (realtime, debug48k, debug55k string) {
	base := ArtifactBase(output)
	return base + "_realtime.wav", base + "_debug48k.wav", base + "_debug55k.wav"
}

// FileRenderer writes the three offline WAV artifacts. Each artifact parses
// the payload and gets its own player.
type FileRenderer struct {
	Realtime bool
	Options  []ym2151play.PlayerOption
}

// NewFileRenderer enables the realtime artifact when the build has an audio
// device.
func NewFileRenderer() *FileRenderer {
	return &FileRenderer{Realtime: intaudio.RealtimeAvailable}
}

func (r *FileRenderer) Render(payload, output string, v *VerbosityConfig) error {
	realtimePath, path48k, path55k := ArtifactPaths(output)

	if r.Realtime {
		p, err := r.player(payload)
		if err != nil {
			return err
		}
		samples, err := ym2151play.CaptureRealtime(p)
		if err != nil {
			return errors.Wrap(err, "capture realtime output")
		}
		if err := ym2151play.WriteWAV(realtimePath, samples, ym2151play.NativeSampleRate); err != nil {
			return errors.Wrap(err, "Failed to write realtime WAV")
		}
		v.Println(fmt.Sprintf("Wrote %s (%d Hz)", realtimePath, ym2151play.NativeSampleRate))
	} else {
		v.Println(fmt.Sprintf("Skipping %s: real-time audio is not available in this build", realtimePath))
	}

	p, err := r.player(payload)
	if err != nil {
		return err
	}
	samples := ym2151play.RenderAll(p, ym2151play.DeviceSampleRate)
	if err := ym2151play.WriteWAV(path48k, samples, ym2151play.DeviceSampleRate); err != nil {
		return errors.Wrap(err, "Failed to write 48kHz WAV")
	}
	v.Println(fmt.Sprintf("Wrote %s (%d Hz)", path48k, ym2151play.DeviceSampleRate))

	p, err = r.player(payload)
	if err != nil {
		return err
	}
	if err := ym2151play.WritePlayerWAV(path55k, p); err != nil {
		return errors.Wrap(err, "Failed to write native-rate WAV")
	}
	v.Println(fmt.Sprintf("Wrote %s (%d Hz)", path55k, ym2151play.NativeSampleRate))
	return nil
}

func (r *FileRenderer) player(payload string) (*ym2151play.Player, error) {
	p, err := ym2151play.NewPlayerFromJSON(payload, r.Options...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to load YM2151 log for rendering")
	}
	return p, nil
}
