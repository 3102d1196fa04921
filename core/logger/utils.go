package logger

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Well known entry fields.
const (
	FieldEvent     = "event"
	FieldTimestamp = "timestamp_micros"
	FieldSession   = "session_id"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(entry *structpb.Struct) error

// Logger captures job lifecycle events.
type Logger struct {
	record  LogRecorder
	session string

	// OnError is called when an event can't be recorded, events are dropped
	// silently if nil.
	OnError func(error)
}

// NewLogger creates a logger that hands entries to record.
func NewLogger(record LogRecorder) *Logger {
	return &Logger{record: record}
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return NewLogger(func(entry *structpb.Struct) error {
		line, err := protojson.Marshal(entry)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintln(w, string(line))
		return err
	})
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *Logger {
	return &Logger{
		record:  l.record,
		session: fmt.Sprintf("%d", rand.Uint64()),
		OnError: l.OnError,
	}
}

// Session returns the logger's session ID, empty for sessionless loggers.
func (l *Logger) Session() string {
	return l.session
}

// Record logs an event with the given fields. Field values must be
// representable as a google.protobuf.Value.
func (l *Logger) Record(event string, fields map[string]interface{}) {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = v
	}
	values[FieldEvent] = event
	values[FieldTimestamp] = time.Now().UnixNano() / int64(time.Microsecond)
	values[FieldSession] = l.session

	entry, err := structpb.NewStruct(values)
	if err == nil {
		err = l.record(entry)
	}
	if err != nil && l.OnError != nil {
		l.OnError(fmt.Errorf("recording %s event: %w", event, err))
	}
}
