package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// EarlyLog writes plain lines to stderr until the configured logger exists.
type EarlyLog struct {
	out io.Writer
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{out: os.Stderr}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) { l.write("ERROR", msg, args...) }
func (l *EarlyLog) Warn(msg string, args ...interface{})  { l.write("WARN", msg, args...) }
func (l *EarlyLog) Info(msg string, args ...interface{})  { l.write("INFO", msg, args...) }

func (l *EarlyLog) write(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339), level, fmt.Sprintf(msg, args...))
}
