package log

import "time"

// Field is a single structured key/value pair attached to a log entry.
// It is the argument type for the Field-based Logger methods (Debug,
// Info, Warn, Error, Fatal); the *f methods take a printf-style format
// string instead.
type Field struct {
	Key   string
	Value interface{}
}

// Str builds a string-valued Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int-valued Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 builds an int64-valued Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool builds a bool-valued Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration builds a time.Duration-valued Field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err builds a Field carrying an error under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component builds the Field used to tag a logger with its owning
// component, matching ComponentKey.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }
