// Package events defines the canonical progress event model and the
// ingress normalization for raw executor messages.
package events

import "time"

// Level identifies which hierarchical map an event mutates.
type Level string

const (
	LevelRun         Level = "run"
	LevelStage       Level = "stage"
	LevelSubTask     Level = "subtask"
	LevelTokenStream Level = "tokenstream"
	LevelAgent       Level = "agent"
)

// Subtype identifies the reducer operation within a level.
type Subtype string

const (
	SubtypeStart    Subtype = "start"
	SubtypeProgress Subtype = "progress"
	SubtypeEnd      Subtype = "end"
	SubtypeError    Subtype = "error"
	SubtypeToken    Subtype = "token"
	SubtypeAction   Subtype = "action"
	SubtypeFinish   Subtype = "finish"
)

// Kind is the dispatch key for one canonical event.
type Kind struct {
	Level   Level
	Subtype Subtype
}

// Event is the canonical record produced by normalization. Every raw
// message shape collapses into this one form before any reducer sees it;
// nothing downstream branches on wire shape again.
type Event struct {
	Level       Level
	Subtype     Subtype
	ExecutionID string
	Timestamp   time.Time
	Fields      map[string]any
}

// Kind returns the dispatch key of the event.
func (e *Event) Kind() Kind {
	return Kind{Level: e.Level, Subtype: e.Subtype}
}

// String returns a field as a string, or "" when absent or not a string.
func (e *Event) String(key string) string {
	if v, ok := e.Fields[key].(string); ok {
		return v
	}

	return ""
}

// Float returns a numeric field as float64. JSON numbers decode as
// float64, but ints are accepted for events built in-process.
func (e *Event) Float(key string) (float64, bool) {
	switch v := e.Fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}

	return 0, false
}

// Int returns a numeric field truncated to int.
func (e *Event) Int(key string) (int, bool) {
	f, ok := e.Float(key)

	return int(f), ok
}

// Map returns an object field, or nil when absent.
func (e *Event) Map(key string) map[string]any {
	if v, ok := e.Fields[key].(map[string]any); ok {
		return v
	}

	return nil
}

// validKinds enumerates every (level, subtype) pair a reducer handles.
// Normalization rejects anything outside this set.
var validKinds = map[Kind]struct{}{
	{LevelRun, SubtypeStart}:         {},
	{LevelRun, SubtypeProgress}:      {},
	{LevelRun, SubtypeEnd}:           {},
	{LevelRun, SubtypeError}:         {},
	{LevelStage, SubtypeStart}:       {},
	{LevelStage, SubtypeProgress}:    {},
	{LevelStage, SubtypeEnd}:         {},
	{LevelStage, SubtypeError}:       {},
	{LevelSubTask, SubtypeStart}:     {},
	{LevelSubTask, SubtypeProgress}:  {},
	{LevelSubTask, SubtypeEnd}:       {},
	{LevelSubTask, SubtypeError}:     {},
	{LevelTokenStream, SubtypeStart}: {},
	{LevelTokenStream, SubtypeToken}: {},
	{LevelTokenStream, SubtypeEnd}:   {},
	{LevelTokenStream, SubtypeError}: {},
	{LevelAgent, SubtypeAction}:      {},
	{LevelAgent, SubtypeFinish}:      {},
}

// IsValidKind reports whether a (level, subtype) pair has a reducer.
func IsValidKind(k Kind) bool {
	_, ok := validKinds[k]

	return ok
}
