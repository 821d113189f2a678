// Package input decides what a command-line INPUT argument refers to and
// loads its contents.
package input

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the source format of an input.
type Kind int

const (
	MMLText Kind = iota
	MMLFile
	MIDIFile
	JSONLog
)

func (k Kind) String() string {
	switch k {
	case MMLText:
		return "mml-text"
	case MMLFile:
		return "mml-file"
	case MIDIFile:
		return "midi-file"
	case JSONLog:
		return "json-log"
	default:
		return "unknown"
	}
}

// Input is a classified argument with its contents loaded. Text holds MML
// source or the JSON log; Data holds SMF bytes.
type Input struct {
	Kind Kind
	Path string
	Text string
	Data []byte
}

// ReadFileFunc loads a file; tests replace it to avoid the filesystem.
type ReadFileFunc func(path string) ([]byte, error)

// Classify inspects the final extension of arg. Recognized extensions
// (mml, mid, json; any case) are always read as files and a read failure is
// an error. Anything else is MML text and the filesystem is not touched.
func Classify(arg string) (Input, error) {
	return ClassifyWith(arg, os.ReadFile)
}

func ClassifyWith(arg string, read ReadFileFunc) (Input, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(arg), "."))
	switch ext {
	case "mml":
		b, err := read(arg)
		if err != nil {
			return Input{}, errors.Wrapf(err, "Failed to read MML file: %s", arg)
		}
		return Input{Kind: MMLFile, Path: arg, Text: string(b)}, nil
	case "mid":
		b, err := read(arg)
		if err != nil {
			return Input{}, errors.Wrapf(err, "Failed to read MIDI file: %s", arg)
		}
		return Input{Kind: MIDIFile, Path: arg, Data: b}, nil
	case "json":
		b, err := read(arg)
		if err != nil {
			return Input{}, errors.Wrapf(err, "Failed to read JSON file: %s", arg)
		}
		return Input{Kind: JSONLog, Path: arg, Text: string(b)}, nil
	}
	return Input{Kind: MMLText, Text: arg}, nil
}
