// Package convert normalizes every supported input into a YM2151 event log
// JSON payload.
package convert

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cbegin/ym2151play-go/internal/input"
	"github.com/cbegin/ym2151play-go/internal/mml"
	"github.com/cbegin/ym2151play-go/internal/smf2log"
)

// Printer receives progress lines. It decides whether they are shown.
type Printer interface {
	Println(msg string)
}

// ToEventLog converts in to the event log JSON. MML goes through the four
// compiler passes and then the SMF converter; SMF goes straight to the
// converter; a JSON log is passed through untouched.
func ToEventLog(in input.Input, out Printer) (string, error) {
	switch in.Kind {
	case input.MMLText, input.MMLFile:
		return mmlToJSON(in.Text, out)
	case input.MIDIFile:
		return smfToJSON(in.Data, out)
	case input.JSONLog:
		out.Println("Using YM2151 JSON file input...")
		return in.Text, nil
	default:
		return "", errors.Errorf("unsupported input kind %v", in.Kind)
	}
}

func mmlToJSON(src string, out Printer) (string, error) {
	out.Println("Processing MML input...")
	out.Println("Step 1: Converting MML to SMF...")

	tokens, err := mml.Lex(src)
	if err != nil {
		return "", errors.Wrap(err, "MML parse failed")
	}
	ast, err := mml.BuildAST(tokens)
	if err != nil {
		return "", errors.Wrap(err, "MML AST construction failed")
	}
	score, err := mml.ToEvents(ast, mml.DefaultConfig())
	if err != nil {
		return "", errors.Wrap(err, "MML event generation failed")
	}
	smfData, err := mml.ToSMF(score)
	if err != nil {
		return "", errors.Wrap(err, "MML to SMF conversion failed")
	}
	out.Println(fmt.Sprintf("  SMF data generated: %d bytes", len(smfData)))
	return smfToJSON(smfData, out)
}

func smfToJSON(data []byte, out Printer) (string, error) {
	out.Println("Step 2: Converting SMF to YM2151 log...")
	js, err := smf2log.ConvertJSON(data)
	if err != nil {
		return "", errors.Wrap(err, "SMF to YM2151 log conversion failed")
	}
	out.Println(fmt.Sprintf("  YM2151 log generated: %d bytes", len(js)))
	return js, nil
}
