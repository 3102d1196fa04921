package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(entry *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var entry structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &entry); err != nil {
			return err
		}

		handler(&entry)
	}
	return nil
}

func stringField(entry *structpb.Struct, name string) string {
	return entry.GetFields()[name].GetStringValue()
}

func intField(entry *structpb.Struct, name string) (int, bool) {
	v, ok := entry.GetFields()[name]
	if !ok {
		return 0, false
	}
	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, false
	}
	return int(v.GetNumberValue()), true
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		Anomalies: NewPathCounter("message"),
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       int        `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Events   StrCounter `json:"events"`
	Commands StrCounter `json:"command_names"`

	ExitCodes     StrCounter   `json:"exit_codes"`
	Signals       StrCounter   `json:"terminating_signals"`
	StopSignals   StrCounter   `json:"stop_signals"`
	FinalStatuses StrCounter   `json:"final_statuses"`
	Anomalies     *PathCounter `json:"anomalies"`

	sessions map[string]bool
}

// Update adds an entry to the report.
func (r *Report) Update(entry *structpb.Struct) {
	r.LogEntries++

	if session := stringField(entry, FieldSession); session != "" {
		if r.sessions == nil {
			r.sessions = make(map[string]bool)
		}
		if !r.sessions[session] {
			r.sessions[session] = true
			r.Sessions++
		}
	}

	event := stringField(entry, FieldEvent)
	switch event {
	case "job_created":
		if fields := strings.Fields(stringField(entry, "command")); len(fields) > 0 {
			r.Commands.Increment(fields[0])
		}
	case "job_stopped":
		r.StopSignals.Increment(stringField(entry, "signal"))
	case "job_finished":
		if code, ok := intField(entry, "exit_code"); ok {
			r.ExitCodes.Increment(fmt.Sprintf("%d", code))
		}
		if sig := stringField(entry, "signal"); sig != "" {
			r.Signals.Increment(sig)
		}
		r.FinalStatuses.Increment(stringField(entry, "status"))
	case "anomaly":
		if r.Anomalies == nil {
			r.Anomalies = NewPathCounter("message")
		}
		r.Anomalies.Increment(stringField(entry, "message"))
	case "job_resumed":
		// Counted below.
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%q", event))
		return
	}
	r.Events.Increment(event)
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Count returns how many times key was seen.
func (s *StrCounter) Count(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Count returns how many times the tuple was seen.
func (ctr *PathCounter) Count(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
