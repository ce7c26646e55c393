// Package session implements the operation queue that serializes
// assign/search/grab/cancel/end work against a pair of grabbers (spec
// §4.6/§4.7). It is the Go realization of the teacher-adjacent Rust
// RustSession: a single worker goroutine reads an operation channel in
// FIFO order (replacing the broadcast-subscriber op_channel, since Go
// has no single-consumer restriction to work around), and two
// capacity-1 channels hand freshly built metadata from the worker to
// whichever goroutine next asks for a grabber, using the same
// peek-or-reuse pattern as the original's try_recv/inject_metadata.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mimecast/dgrab/internal/grab"
	"github.com/mimecast/dgrab/internal/grab/graberr"
	"github.com/mimecast/dgrab/internal/grab/metadata"
	"github.com/mimecast/dgrab/internal/grab/slot"
	"github.com/mimecast/dgrab/internal/grab/source"
	"github.com/mimecast/dgrab/internal/grabconfig"
	"github.com/mimecast/dgrab/internal/grablog"
	"github.com/mimecast/dgrab/internal/search"
	"github.com/mimecast/dgrab/internal/session/event"
)

// operation is the tagged union queued on Session's worker channel.
type operation interface {
	opKind() string
}

type assignOp struct {
	id       string
	path     string
	sourceID string
}

func (assignOp) opKind() string { return "assign" }

type searchOp struct {
	id      string
	target  string
	filters []search.Filter
}

func (searchOp) opKind() string { return "search" }

type endOp struct{}

func (endOp) opKind() string { return "end" }

type contentMetadataResult struct {
	idx *slot.Index
	err error
}

type searchMetadataResult struct {
	path string
	idx  slot.Index
}

// Session serializes operations against a content grabber and, once a
// search has run, a search-results grabber.
type Session struct {
	id  string
	cfg grabconfig.Config

	opCh chan operation
	done chan struct{}

	running atomic.Bool
	cb      event.Callback

	contentGrabber atomic.Pointer[grab.Grabber]
	contentMDCh    chan contentMetadataResult

	searchGrabber atomic.Pointer[grab.Grabber]
	searchMDCh    chan searchMetadataResult

	mu            sync.Mutex
	currentCancel context.CancelFunc
}

// New constructs a Session identified by id, using cfg's queue depth.
func New(id string, cfg grabconfig.Config) *Session {
	return &Session{
		id:          id,
		cfg:         cfg,
		opCh:        make(chan operation, cfg.OperationQueueSize),
		done:        make(chan struct{}),
		contentMDCh: make(chan contentMetadataResult, 1),
		searchMDCh:  make(chan searchMetadataResult, 1),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Start launches the worker goroutine, which delivers events to cb in
// the order their originating operations were queued. Calling Start
// more than once is a no-op.
func (s *Session) Start(cb event.Callback) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.cb = cb
	go s.run()
}

func (s *Session) run() {
	grablog.Info("session", s.id, "worker started")
	defer close(s.done)
	for op := range s.opCh {
		switch o := op.(type) {
		case assignOp:
			s.runCancellable(func(ctx context.Context) { s.handleAssign(ctx, o) })
		case searchOp:
			s.runCancellable(func(ctx context.Context) { s.handleSearch(ctx, o) })
		case endOp:
			s.cb(event.SessionDestroyed{})
			grablog.Info("session", s.id, "worker exiting")
			return
		}
	}
}

// runCancellable runs fn with a context that CancelOperations can cancel,
// mirroring the shutdown broadcast channel's effect on the in-flight
// operation only.
func (s *Session) runCancellable(fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.currentCancel = cancel
	s.mu.Unlock()

	fn(ctx)

	s.mu.Lock()
	if s.currentCancel != nil {
		s.currentCancel()
	}
	s.currentCancel = nil
	s.mu.Unlock()
}

// sendReplacing performs a non-blocking send on a capacity-1 channel,
// draining a stale pending value first if the channel is already full:
// "a newer value displaces an older, unread one" (spec §5).
func sendReplacing[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func (s *Session) handleAssign(ctx context.Context, op assignOp) {
	grablog.Info("session", s.id, "assign", op.path)
	src := source.New(op.path, op.sourceID)
	idx, stopped, err := src.FromFile(ctx, nil)
	switch {
	case err != nil:
		sendReplacing(s.contentMDCh, contentMetadataResult{err: err})
		s.cb(event.OperationError{UUID: op.id, Error: event.FromError(err)})
	case stopped:
		sendReplacing(s.contentMDCh, contentMetadataResult{idx: nil})
	default:
		sendReplacing(s.contentMDCh, contentMetadataResult{idx: &idx})
		s.cb(event.StreamUpdated{LineCount: idx.LineCount})
	}
	// An assign always completes the operation, win or lose: the caller
	// learns about failures through OperationError above and through
	// Grab/GetStreamLen failing once it tries to use the grabber.
	s.cb(event.OperationDone{UUID: op.id})
}

type searchResult struct {
	Found int    `json:"found"`
	Path  string `json:"path,omitempty"`
}

func (s *Session) handleSearch(ctx context.Context, op searchOp) {
	grablog.Info("session", s.id, "search", op.target)
	resultsPath, matched, err := search.Execute(ctx, op.target, op.filters)
	if err != nil {
		s.cb(event.OperationError{UUID: op.id, Error: event.FromError(err)})
		return
	}

	if matched == 0 {
		s.cb(event.SearchUpdated{LineCount: 0})
	} else {
		idx, stopped, mdErr := metadata.Build(ctx, resultsPath, s.slotSize())
		if mdErr != nil {
			s.cb(event.OperationError{UUID: op.id, Error: event.FromError(mdErr)})
			return
		}
		if !stopped {
			sendReplacing(s.searchMDCh, searchMetadataResult{path: resultsPath, idx: idx})
			s.cb(event.SearchUpdated{LineCount: matched})
		}
	}

	payload, _ := json.Marshal(searchResult{Found: int(matched), Path: resultsPath})
	res := string(payload)
	s.cb(event.OperationDone{UUID: op.id, Result: &res})
}

func (s *Session) slotSize() int {
	if s.cfg.SlotSize <= 0 {
		return grabconfig.DefaultSlotSize
	}
	return s.cfg.SlotSize
}

// Assign constructs a Grabber over path synchronously (so callers learn
// about a missing/empty file immediately) and queues the metadata build
// as an operation, returning its operation id.
func (s *Session) Assign(path, sourceID string) (string, error) {
	g, err := grab.New(path, sourceID)
	if err != nil {
		return "", err
	}
	s.contentGrabber.Store(g)

	id := uuid.New().String()
	s.opCh <- assignOp{id: id, path: path, sourceID: sourceID}
	return id, nil
}

// Search queues a search over the currently assigned content file's
// path, discarding any previously built search grabber so the next
// GrabSearch call picks up fresh results.
func (s *Session) Search(filters []search.Filter) (string, error) {
	cg := s.contentGrabber.Load()
	if cg == nil {
		return "", graberr.New(graberr.Protocol, "no content assigned to search")
	}
	var nilGrabber *grab.Grabber
	s.searchGrabber.Store(nilGrabber)

	id := uuid.New().String()
	s.opCh <- searchOp{id: id, target: cg.Path, filters: filters}
	return id, nil
}

// CancelOperations cancels whichever operation is currently in flight.
// It has no effect if the worker is idle.
func (s *Session) CancelOperations() {
	s.mu.Lock()
	cancel := s.currentCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop queues the terminating End operation and clears the running flag.
// Assign and Search do not check that flag; operations queued after End
// are never processed. Stop does not block for the worker to drain.
func (s *Session) Stop() {
	s.running.Store(false)
	s.opCh <- endOp{}
}

// Done returns a channel closed once the worker has processed End and
// exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// getContentGrabber applies any freshly built metadata waiting on the
// content hand-off channel, falling back to the grabber's existing
// metadata if nothing new arrived.
func (s *Session) getContentGrabber() (*grab.Grabber, error) {
	g := s.contentGrabber.Load()
	if g == nil {
		return nil, graberr.New(graberr.Protocol, "need a grabber first to work with metadata")
	}
	select {
	case res := <-s.contentMDCh:
		if res.err != nil {
			return nil, graberr.Wrap(graberr.Protocol, res.err, "problems during metadata generation")
		}
		if res.idx == nil {
			return nil, graberr.New(graberr.Protocol, "no metadata available for content grabber")
		}
		g.SetMetadata(*res.idx)
		return g, nil
	default:
		if _, ok := g.Metadata(); ok {
			return g, nil
		}
		return nil, graberr.New(graberr.Protocol, "no metadata available for content grabber")
	}
}

// getSearchGrabber builds the search-results grabber from fresh
// metadata the first time it's asked for after a Search, then reuses it
// until the next Search discards it. ok is false (with a nil error) when
// no search has completed yet.
func (s *Session) getSearchGrabber() (g *grab.Grabber, ok bool, err error) {
	g = s.searchGrabber.Load()
	if g != nil {
		return g, true, nil
	}
	select {
	case res := <-s.searchMDCh:
		ng, err := grab.New(res.path, "search_results")
		if err != nil {
			return nil, false, graberr.Wrap(graberr.Protocol, err, "building search grabber")
		}
		ng.SetMetadata(res.idx)
		s.searchGrabber.Store(ng)
		return ng, true, nil
	default:
		return nil, false, nil
	}
}

// GetStreamLen returns the content grabber's line count.
func (s *Session) GetStreamLen() (int64, error) {
	g, err := s.getContentGrabber()
	if err != nil {
		return 0, err
	}
	lc, _ := g.LineCount()
	return int64(lc), nil
}

// GetSearchLen returns the search grabber's line count minus one,
// preserving the off-by-one of the metadata scan's line-count formula
// reflected through the search-results grabber (see DESIGN.md), or 0 if
// no search has completed yet.
func (s *Session) GetSearchLen() int64 {
	g, ok, err := s.getSearchGrabber()
	if err != nil || !ok {
		return 0
	}
	lc, hasMD := g.LineCount()
	if !hasMD || lc == 0 {
		return 0
	}
	return int64(lc) - 1
}

// Grab reads count lines of the assigned content starting at start.
func (s *Session) Grab(start, count int64) (grab.Content, error) {
	if count <= 0 {
		return nil, graberr.New(graberr.InvalidRange, "invalid range: count must be positive")
	}
	g, err := s.getContentGrabber()
	if err != nil {
		return nil, err
	}
	return g.GetEntries(slot.LineRange{Start: uint64(start), End: uint64(start + count)})
}

type matchRange struct {
	from, to uint64
}

// GrabSearch reads count search-result rows starting at start, then
// resolves each matched line number back through the content grabber,
// annotating every returned element with its original-file position
// (Pos) and its row within this response (Row). The run-coalescing
// below is ported from the original session's grab_search, including
// the exact (not the more obvious) equality check used to decide
// whether to flush the final run — see DESIGN.md. Matched line numbers
// are used as-is (no shift): GetEntries is 0-indexed and half-open, so
// a match reported at line N resolves to content range [N, N+1).
func (s *Session) GrabSearch(start, count int64) (grab.Content, error) {
	if count <= 0 {
		return nil, graberr.New(graberr.InvalidRange, "invalid range: count must be positive")
	}
	sg, ok, err := s.getSearchGrabber()
	if err != nil {
		return nil, err
	}
	if !ok {
		return grab.Content{}, nil
	}

	matches, err := sg.GetEntries(slot.LineRange{Start: uint64(start), End: uint64(start + count)})
	if err != nil {
		return nil, err
	}

	var ranges []matchRange
	var fromPos, toPos uint64
	for i, el := range matches {
		pos, perr := strconv.ParseUint(strings.TrimSpace(el.Content), 10, 64)
		if perr != nil {
			return nil, graberr.Wrap(graberr.InvalidData, perr, "parsing search result line number %q", el.Content)
		}
		switch {
		case i == 0:
			fromPos, toPos = pos, pos
		case toPos+1 != pos:
			ranges = append(ranges, matchRange{from: fromPos, to: toPos})
			fromPos, toPos = pos, pos
		default:
			toPos = pos
		}
	}
	if (len(ranges) > 0 && ranges[len(ranges)-1].from != fromPos) ||
		(len(ranges) == 0 && len(matches) > 0) {
		ranges = append(ranges, matchRange{from: fromPos, to: toPos})
	}

	cg, err := s.getContentGrabber()
	if err != nil {
		return nil, err
	}

	results := make(grab.Content, 0, len(matches))
	row := uint64(start)
	for _, rg := range ranges {
		original, err := cg.GetEntries(slot.LineRange{Start: rg.from, End: rg.to + 1})
		if err != nil {
			return nil, err
		}
		for j, el := range original {
			pos := rg.from + uint64(j)
			r := row
			el.Pos = &pos
			el.Row = &r
			results = append(results, el)
			row++
		}
	}
	return results, nil
}

// String implements fmt.Stringer for debug logging.
func (s *Session) String() string { return fmt.Sprintf("session(%s)", s.id) }
