// Package testlog captures logx output so tests can assert on messages and fields.
package testlog

import (
	"sync"

	"courier-dispatch/internal/logx"
)

type Entry struct {
	Level  string
	Msg    string
	Fields []logx.Field
}

// Field returns the last value logged under key.
func (e Entry) Field(key string) (any, bool) {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value, true
		}
	}
	return nil, false
}

// Recorder is safe for concurrent use by every logger it hands out.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Recorder { return &Recorder{} }

func (r *Recorder) Logger() logx.Logger {
	return recorded{rec: r}
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

func (r *Recorder) HasMsg(msg string) bool {
	_, ok := r.Find(msg)
	return ok
}

// Find returns the first entry logged with msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Recorder) Count(msg string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Msg == msg {
			n++
		}
	}
	return n
}

func (r *Recorder) record(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

type recorded struct {
	rec    *Recorder
	fields []logx.Field
}

var _ logx.Logger = recorded{}

func (l recorded) log(level, msg string, fields []logx.Field) {
	all := make([]logx.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	l.rec.record(Entry{Level: level, Msg: msg, Fields: all})
}

func (l recorded) Debug(msg string, f ...logx.Field) { l.log("debug", msg, f) }
func (l recorded) Info(msg string, f ...logx.Field)  { l.log("info", msg, f) }
func (l recorded) Warn(msg string, f ...logx.Field)  { l.log("warn", msg, f) }
func (l recorded) Error(msg string, f ...logx.Field) { l.log("error", msg, f) }

func (l recorded) With(f ...logx.Field) logx.Logger {
	fields := make([]logx.Field, 0, len(l.fields)+len(f))
	fields = append(fields, l.fields...)
	return recorded{rec: l.rec, fields: append(fields, f...)}
}

func (l recorded) Sync() error { return nil }
