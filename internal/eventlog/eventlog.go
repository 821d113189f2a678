// Package eventlog reads and writes the YM2151 register event log, the JSON
// form shared by the converter, the playback daemon and the offline renderer.
package eventlog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaData []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	})
	return schema, schemaErr
}

// Event is a single register write at a point in time.
type Event struct {
	Time float64 // seconds from song start
	Addr uint8
	Data uint8
}

// Sample returns the sample index at which the write is due for the given rate.
func (e Event) Sample(rate int) int64 {
	return int64(math.Round(e.Time * float64(rate)))
}

type wireEvent struct {
	Time float64 `json:"time"`
	Addr string  `json:"addr"`
	Data string  `json:"data"`
}

type wireLog struct {
	EventCount int         `json:"event_count"`
	Events     []wireEvent `json:"events"`
}

// Log is an ordered list of register writes.
type Log struct {
	Events []Event
}

// Parse validates data against the log schema and decodes it. Events are
// returned in time order; writes sharing a timestamp keep their file order.
func Parse(data []byte) (*Log, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, errors.Wrap(err, "compile event log schema")
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrap(err, "invalid event log JSON")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, errors.Errorf("event log does not match schema: %s", strings.Join(msgs, "; "))
	}

	var wl wireLog
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, errors.Wrap(err, "decode event log")
	}
	log := &Log{Events: make([]Event, 0, len(wl.Events))}
	for i, we := range wl.Events {
		addr, err := parseHexByte(we.Addr)
		if err != nil {
			return nil, errors.Wrapf(err, "event %d addr", i)
		}
		val, err := parseHexByte(we.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "event %d data", i)
		}
		log.Events = append(log.Events, Event{Time: we.Time, Addr: addr, Data: val})
	}
	sort.SliceStable(log.Events, func(i, j int) bool {
		return log.Events[i].Time < log.Events[j].Time
	})
	return log, nil
}

// ParseString is Parse for a string payload.
func ParseString(s string) (*Log, error) {
	return Parse([]byte(s))
}

// Marshal renders the log in canonical form.
func (l *Log) Marshal() ([]byte, error) {
	wl := wireLog{EventCount: len(l.Events), Events: make([]wireEvent, len(l.Events))}
	for i, e := range l.Events {
		wl.Events[i] = wireEvent{
			Time: e.Time,
			Addr: fmt.Sprintf("0x%02X", e.Addr),
			Data: fmt.Sprintf("0x%02X", e.Data),
		}
	}
	return json.MarshalIndent(wl, "", "  ")
}

// Duration returns the time of the last event.
func (l *Log) Duration() float64 {
	if len(l.Events) == 0 {
		return 0
	}
	return l.Events[len(l.Events)-1].Time
}

// Add appends a register write.
func (l *Log) Add(t float64, addr, data uint8) {
	l.Events = append(l.Events, Event{Time: t, Addr: addr, Data: data})
}

func parseHexByte(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "bad hex byte %q", s)
	}
	return uint8(v), nil
}
