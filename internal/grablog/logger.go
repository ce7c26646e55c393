// Package grablog is a small, non-blocking logger for the grab/search/
// session engine, modeled on the teacher's internal/io/logger: a handful
// of level functions that join their arguments with "|" and hand the
// resulting line to a buffered channel so the orchestrator's worker
// goroutine never blocks on a slow writer.
package grablog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	infoStr  = "INFO"
	warnStr  = "WARN"
	errorStr = "ERROR"
	debugStr = "DEBUG"
)

var (
	mutex    sync.Mutex
	writer   = bufio.NewWriter(os.Stderr)
	bufCh    chan string
	debugOn  bool
	startled bool
)

// Start launches the drain goroutine that writes buffered lines to the
// configured writer. Calling it more than once is a no-op.
func Start() {
	mutex.Lock()
	defer mutex.Unlock()
	if startled {
		return
	}
	startled = true
	bufCh = make(chan string, 1024)
	go drain()
}

// SetOutput redirects where log lines are written. Intended for tests.
func SetOutput(w *bufio.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	writer = w
}

// EnableDebug toggles Debug-level output.
func EnableDebug(enabled bool) {
	mutex.Lock()
	defer mutex.Unlock()
	debugOn = enabled
}

func drain() {
	for line := range bufCh {
		mutex.Lock()
		writer.WriteString(line)
		writer.Flush()
		mutex.Unlock()
	}
}

func log(severity string, args ...interface{}) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, severity)
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			parts = append(parts, v)
		case error:
			parts = append(parts, v.Error())
		default:
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	message := strings.Join(parts, "|")

	mutex.Lock()
	started := startled
	mutex.Unlock()
	if !started {
		// Logging used before Start: write synchronously rather than
		// dropping the line.
		mutex.Lock()
		writer.WriteString(message + "\n")
		writer.Flush()
		mutex.Unlock()
		return message
	}
	bufCh <- message + "\n"
	return message
}

// Info logs an informational message.
func Info(args ...interface{}) string { return log(infoStr, args...) }

// Warn logs a recoverable-condition message.
func Warn(args ...interface{}) string { return log(warnStr, args...) }

// Error logs a failure requiring caller attention.
func Error(args ...interface{}) string { return log(errorStr, args...) }

// Debug logs a message only when EnableDebug(true) was called.
func Debug(args ...interface{}) string {
	mutex.Lock()
	on := debugOn
	mutex.Unlock()
	if !on {
		return ""
	}
	return log(debugStr, args...)
}
