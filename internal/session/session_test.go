package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mimecast/dgrab/internal/grab/graberr"
	"github.com/mimecast/dgrab/internal/grabconfig"
	"github.com/mimecast/dgrab/internal/search"
	"github.com/mimecast/dgrab/internal/session/event"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

type recorder struct {
	mu     chan struct{}
	events []event.Event
}

func newRecorder() *recorder {
	return &recorder{mu: make(chan struct{}, 1)}
}

func (r *recorder) collect(e event.Event) {
	r.events = append(r.events, e)
}

// waitFor polls until pred(recorded events) holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func hasEventType[T event.Event](events []event.Event) bool {
	for _, e := range events {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func countEventType[T event.Event](events []event.Event) int {
	n := 0
	for _, e := range events {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func TestAssignEmitsStreamUpdatedThenOperationDone(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc\n")
	s := New("sess1", grabconfig.Default())
	rec := newRecorder()
	s.Start(rec.collect)

	_, err := s.Assign(path, "src")
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return countEventType[event.OperationDone](rec.events) >= 1
	})
	require.True(t, hasEventType[event.StreamUpdated](rec.events))

	var streamIdx, doneIdx int = -1, -1
	for i, e := range rec.events {
		switch e.(type) {
		case event.StreamUpdated:
			streamIdx = i
		case event.OperationDone:
			doneIdx = i
		}
	}
	require.True(t, streamIdx >= 0 && doneIdx >= 0 && streamIdx < doneIdx)
}

// TestSearchComposition exercises spec scenario S5: a 1000-line file,
// a literal filter matching line 42, grab_search(0,1) resolves to the
// original content row at position 42.
func TestSearchComposition(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&buf, "line_%d\n", i)
	}
	path := writeTempFile(t, buf.String())

	s := New("sess2", grabconfig.Default())
	rec := newRecorder()
	s.Start(rec.collect)

	_, err := s.Assign(path, "src")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return hasEventType[event.StreamUpdated](rec.events) })

	_, err = s.Search([]search.Filter{{Value: "line_42"}})
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return hasEventType[event.SearchUpdated](rec.events) })

	content, err := s.GrabSearch(0, 1)
	require.NoError(t, err)
	require.Len(t, content, 1)
	require.Equal(t, "line_42", content[0].Content)
	require.NotNil(t, content[0].Pos)
	require.Equal(t, uint64(42), *content[0].Pos)
	require.NotNil(t, content[0].Row)
	require.Equal(t, uint64(0), *content[0].Row)
}

// TestCancelMidAssign exercises spec scenario S6: cancelling an in-flight
// assign yields OperationDone with no StreamUpdated, and a subsequent
// Grab fails with a Protocol-kind error since no metadata ever arrived.
func TestCancelMidAssign(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 500000; i++ {
		fmt.Fprintf(&buf, "line number %d with some padding text\n", i)
	}
	path := writeTempFile(t, buf.String())

	s := New("sess3", grabconfig.Default())
	rec := newRecorder()
	s.Start(rec.collect)

	_, err := s.Assign(path, "src")
	require.NoError(t, err)
	// Give the worker a chance to start the metadata build before
	// cancelling it, otherwise there is nothing in flight to cancel.
	time.Sleep(5 * time.Millisecond)
	s.CancelOperations()

	waitFor(t, 2*time.Second, func() bool {
		return countEventType[event.OperationDone](rec.events) >= 1
	})
	require.False(t, hasEventType[event.StreamUpdated](rec.events))

	_, err = s.Grab(0, 1)
	require.Error(t, err)
	require.True(t, graberr.Is(err, graberr.Protocol))
}

func TestStopEmitsSessionDestroyed(t *testing.T) {
	path := writeTempFile(t, "a\nb\n")
	s := New("sess4", grabconfig.Default())
	rec := newRecorder()
	s.Start(rec.collect)

	_, err := s.Assign(path, "src")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return hasEventType[event.StreamUpdated](rec.events) })

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after Stop")
	}
	require.True(t, hasEventType[event.SessionDestroyed](rec.events))
}

func TestGrabInvalidRange(t *testing.T) {
	path := writeTempFile(t, "a\nb\n")
	s := New("sess5", grabconfig.Default())
	s.Start(func(event.Event) {})

	_, err := s.Assign(path, "src")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool {
		_, lerr := s.GetStreamLen()
		return lerr == nil
	})

	_, err = s.Grab(0, 0)
	require.Error(t, err)
	require.True(t, graberr.Is(err, graberr.InvalidRange))
}

func TestGrabSearchWithoutSearchReturnsEmpty(t *testing.T) {
	path := writeTempFile(t, "a\nb\n")
	s := New("sess6", grabconfig.Default())
	s.Start(func(event.Event) {})

	_, err := s.Assign(path, "src")
	require.NoError(t, err)

	content, err := s.GrabSearch(0, 1)
	require.NoError(t, err)
	require.Empty(t, content)
}
