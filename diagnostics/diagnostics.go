// Package diagnostics carries leveled validation events out of the decoder.
//
// The decoder only ever sees the Sink interface.  Where the events end up
// (memory, a logrus logger, a log file) is decided by whoever constructs the
// sink, once per decode.
package diagnostics

import (
	"fmt"
	"sync"
)

type Level int

const (
	Debug = Level(iota)
	Info
	Warning
	Error
)

func (level Level) String() string {
	switch level {
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("LevelUnknown(%d)", int(level))
	}
}

// Code is a stable numeric identifier for a particular diagnostic.
type Code uint16

func (code Code) String() string {
	return fmt.Sprintf("%04x", uint16(code))
}

// Fields holds the typed values attached to an event.
type Fields map[string]interface{}

type Event struct {
	Level
	Code
	Message string
	Fields  Fields
}

func (event Event) String() string {
	return fmt.Sprintf("[%s] %s: %s", event.Code, event.Level, event.Message)
}

type Sink interface {
	Emit(event Event)
}

type SinkFunc func(event Event)

func (f SinkFunc) Emit(event Event) {
	f(event)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mutex  sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (recorder *Recorder) Emit(event Event) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	recorder.events = append(recorder.events, event)
}

func (recorder *Recorder) Events() []Event {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	result := make([]Event, len(recorder.events))
	copy(result, recorder.events)
	return result
}

// Find returns the first recorded event with the given code.
func (recorder *Recorder) Find(code Code) (Event, bool) {
	for _, event := range recorder.Events() {
		if event.Code == code {
			return event, true
		}
	}

	return Event{}, false
}

func (recorder *Recorder) Has(level Level, code Code) bool {
	event, ok := recorder.Find(code)
	return ok && event.Level == level
}

// Count returns the number of recorded events at the given level.
func (recorder *Recorder) Count(level Level) int {
	count := 0
	for _, event := range recorder.Events() {
		if event.Level == level {
			count++
		}
	}
	return count
}

type tee []Sink

func (sinks tee) Emit(event Event) {
	for _, sink := range sinks {
		sink.Emit(event)
	}
}

// Tee forwards every event to all non-nil sinks, in order.
func Tee(sinks ...Sink) Sink {
	result := make(tee, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			result = append(result, sink)
		}
	}
	return result
}

// MinLevel drops events below the given level before forwarding to sink.
func MinLevel(level Level, sink Sink) Sink {
	return SinkFunc(func(event Event) {
		if event.Level >= level {
			sink.Emit(event)
		}
	})
}
