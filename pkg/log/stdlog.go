package log

import (
	"log"
	"strings"
)

// stdWriter adapts a Logger to an io.Writer that emits each Write as one
// log line at a fixed level, for bridging dependencies that still write
// through the standard library's log package.
type stdWriter struct {
	logger Logger
	level  Level
}

func (w *stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg == "" {
		return len(p), nil
	}
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog points the standard library's default logger at logger
// so third-party dependencies still calling log.Print* land in the same
// structured stream. It returns a restore function.
func RedirectStdLog(logger Logger) func() {
	prevOutput := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&stdWriter{logger: logger, level: InfoLevel})
	log.SetFlags(0)
	return func() {
		log.SetOutput(prevOutput)
		log.SetFlags(prevFlags)
	}
}

// ToStdLogger returns a standard library *log.Logger that writes each
// line through logger at the given level.
func ToStdLogger(logger Logger, level Level) *log.Logger {
	return log.New(&stdWriter{logger: logger, level: level}, "", 0)
}
