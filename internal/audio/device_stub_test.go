//go:build noaudio

package audio

import (
	"errors"
	"testing"
)

func TestOpenOutputWithoutDevice(t *testing.T) {
	if RealtimeAvailable {
		t.Fatalf("noaudio build must not report a device")
	}
	if _, err := OpenOutput(&countdown{left: 1}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("open output = %v, want ErrNoDevice", err)
	}
}
