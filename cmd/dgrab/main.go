// Package main provides the dgrab command-line tool: a local
// demonstration harness for the session engine in internal/session. It
// assigns a file, optionally runs a search over it, and prints the
// grabbed rows as JSON to stdout.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mimecast/dgrab/internal/grabconfig"
	"github.com/mimecast/dgrab/internal/grablog"
	"github.com/mimecast/dgrab/internal/profiling"
	"github.com/mimecast/dgrab/internal/search"
	"github.com/mimecast/dgrab/internal/session"
	"github.com/mimecast/dgrab/internal/session/event"
	"github.com/mimecast/dgrab/internal/version"
)

var errOperationTimeout = errors.New("operation timed out")

// outcomes records every OperationDone/OperationError event under a
// mutex. The worker goroutine may deliver one before Assign/Search have
// even returned the operation id the caller wants to wait for, so
// callers poll this log by id instead of racing a shared variable
// between the callback goroutine and the caller.
type outcomes struct {
	mu   sync.Mutex
	done map[string]*event.NativeError // nil entry: succeeded
}

func newOutcomes() *outcomes {
	return &outcomes{done: make(map[string]*event.NativeError)}
}

func (o *outcomes) record(e event.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev := e.(type) {
	case event.OperationDone:
		// A failed operation reports OperationError and then
		// OperationDone; keep the recorded error.
		if _, seen := o.done[ev.UUID]; !seen {
			o.done[ev.UUID] = nil
		}
	case event.OperationError:
		err := ev.Error
		o.done[ev.UUID] = &err
	}
}

// wait polls until id has a recorded outcome, then returns its error, if
// any, or errOperationTimeout if none arrives within timeout.
func (o *outcomes) wait(id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		o.mu.Lock()
		nerr, ok := o.done[id]
		o.mu.Unlock()
		if ok {
			if nerr == nil {
				return nil
			}
			return fmt.Errorf("%s: %s", nerr.Kind, derefMessage(nerr.Message))
		}
		time.Sleep(time.Millisecond)
	}
	return errOperationTimeout
}

func derefMessage(m *string) string {
	if m == nil {
		return ""
	}
	return *m
}

func main() {
	var (
		displayVersion bool
		file           string
		value          string
		isRegex        bool
		ignoreCase     bool
		isWord         bool
		start          int64
		count          int64
		debug          bool
		profileFlags   profiling.Flags
	)

	profiling.AddFlags(&profileFlags)
	flag.BoolVar(&displayVersion, "version", false, "Display version")
	flag.StringVar(&file, "file", "", "File to assign and grab from")
	flag.StringVar(&value, "value", "", "Search filter value; if empty, grab the content directly")
	flag.BoolVar(&isRegex, "regex", false, "Treat value as a regular expression")
	flag.BoolVar(&ignoreCase, "ignoreCase", false, "Case-insensitive match")
	flag.BoolVar(&isWord, "word", false, "Match value as a whole word")
	flag.Int64Var(&start, "start", 0, "First line index to grab")
	flag.Int64Var(&count, "count", 10, "Number of lines to grab")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if displayVersion {
		version.PrintAndExit()
	}

	grablog.Start()
	grablog.EnableDebug(debug)

	profiler := profiling.NewProfiler(profileFlags.ToConfig(version.Name))
	defer profiler.Stop()

	if file == "" {
		grablog.Error("no -file given")
		os.Exit(1)
	}

	sess := session.New("cli", grabconfig.Default())
	oc := newOutcomes()

	sess.Start(func(e event.Event) {
		switch ev := e.(type) {
		case event.OperationDone, event.OperationError:
			oc.record(ev)
		case event.StreamUpdated:
			grablog.Debug("stream updated", ev.LineCount)
		case event.SearchUpdated:
			grablog.Debug("search updated", ev.LineCount)
		}
	})

	assignID, err := sess.Assign(file, "cli")
	if err != nil {
		grablog.Error("assign failed", err)
		os.Exit(1)
	}
	if err := oc.wait(assignID, 30*time.Second); err != nil {
		grablog.Error("assign failed", err)
		os.Exit(1)
	}

	var content interface{}
	if value != "" {
		searchID, err := sess.Search([]search.Filter{{
			Value:      value,
			IsRegex:    isRegex,
			IgnoreCase: ignoreCase,
			IsWord:     isWord,
		}})
		if err != nil {
			grablog.Error("search failed", err)
			os.Exit(1)
		}
		if err := oc.wait(searchID, 30*time.Second); err != nil {
			grablog.Error("search failed", err)
			os.Exit(1)
		}

		grabbed, err := sess.GrabSearch(start, count)
		if err != nil {
			grablog.Error("grab search failed", err)
			os.Exit(1)
		}
		content = grabbed
	} else {
		grabbed, err := sess.Grab(start, count)
		if err != nil {
			grablog.Error("grab failed", err)
			os.Exit(1)
		}
		content = grabbed
	}

	sess.Stop()
	<-sess.Done()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(content); err != nil {
		grablog.Error("encoding output", err)
		os.Exit(1)
	}
}
