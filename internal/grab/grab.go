// Package grab couples a source file path with a slot index and serves
// random-access line-range reads without reading the whole file (spec
// §4.3). It is the Go realization of the teacher-adjacent Rust Grabber.
package grab

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/mimecast/dgrab/internal/grab/graberr"
	"github.com/mimecast/dgrab/internal/grab/slot"
)

// Element is a single returned row (spec GrabbedElement). Row is the row
// within the returned set; Pos is the original-file line index,
// populated by the search pipeline only.
type Element struct {
	SourceID string  `json:"id"`
	Content  string  `json:"c"`
	Row      *uint64 `json:"row,omitempty"`
	Pos      *uint64 `json:"pos,omitempty"`
}

// Content is the ordered response body of a range read.
type Content []Element

// Grabber couples a source file path with its (possibly not-yet-built)
// slot index and serves GetEntries reads.
type Grabber struct {
	SourceID      string
	Path          string
	InputFileSize uint64
	LastLineEmpty bool

	// metadata transitions from nil to non-nil at most once after
	// construction (the spec's "monotonic" invariant); further
	// mutation via SetMetadata is for tests only.
	metadata atomic.Pointer[slot.Index]
}

// New constructs a lazy Grabber (without metadata) over path. The path
// must refer to a non-empty regular file.
func New(path, sourceID string) (*Grabber, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, graberr.Wrap(graberr.Config, err, "could not determine size of input file")
	}
	if info.Size() == 0 {
		return nil, graberr.New(graberr.Config, "cannot grab empty file")
	}

	lastLineEmpty, err := lastLineEmpty(path)
	if err != nil {
		return nil, err
	}

	return &Grabber{
		SourceID:      sourceID,
		Path:          path,
		InputFileSize: uint64(info.Size()),
		LastLineEmpty: lastLineEmpty,
	}, nil
}

func lastLineEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, graberr.Wrap(graberr.Config, err, "could not open file to grab")
	}
	defer f.Close()

	if _, err := f.Seek(-1, io.SeekEnd); err != nil {
		return false, graberr.Wrap(graberr.Config, err, "could not seek to end of file")
	}
	buf := make([]byte, 1)
	n, err := f.Read(buf)
	if n == 0 || err != nil {
		return false, graberr.Wrap(graberr.IoOperation, err, "could not read last byte")
	}
	return buf[0] == '\n' || buf[0] == '\r', nil
}

// Metadata returns the currently attached slot index, if any.
func (g *Grabber) Metadata() (slot.Index, bool) {
	p := g.metadata.Load()
	if p == nil {
		return slot.Index{}, false
	}
	return *p, true
}

// SetMetadata attaches idx to the grabber. Per the spec, metadata
// transitions from absent to present at most once in normal operation;
// calling this a second time is a programming error reserved for tests.
func (g *Grabber) SetMetadata(idx slot.Index) {
	g.metadata.Store(&idx)
}

// LineCount returns the line count of the attached metadata, if any.
func (g *Grabber) LineCount() (uint64, bool) {
	idx, ok := g.Metadata()
	if !ok {
		return 0, false
	}
	return idx.LineCount, true
}

// GetEntries reads the smallest byte span of the file guaranteed to
// contain all lines in r, per spec §4.3.
func (g *Grabber) GetEntries(r slot.LineRange) (Content, error) {
	if r.End <= r.Start {
		return nil, graberr.New(graberr.InvalidRange, "invalid range [%d, %d)", r.Start, r.End)
	}

	idx, ok := g.Metadata()
	if !ok {
		return nil, graberr.New(graberr.Config, "no metadata attached to grabber")
	}

	startSlot, ok := idx.IdentifySlot(r.Start)
	if !ok {
		return Content{}, nil
	}
	endSlot, ok := idx.IdentifySlot(r.End - 1)
	if !ok {
		return Content{}, nil
	}

	f, err := os.Open(g.Path)
	if err != nil {
		return nil, graberr.Wrap(graberr.IoOperation, err, "opening %s", g.Path)
	}
	defer f.Close()

	span := endSlot.Bytes.End - startSlot.Bytes.Start
	buf := make([]byte, span)
	if _, err := f.Seek(int64(startSlot.Bytes.Start), io.SeekStart); err != nil {
		return nil, graberr.Wrap(graberr.IoOperation, err, "seeking in %s", g.Path)
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, graberr.Wrap(graberr.IoOperation, err, "reading %s", g.Path)
	}

	// Split on both \n and \r: a CRLF line ending therefore produces a
	// spurious empty element between the two separators. Preserved
	// verbatim from observed upstream behavior (see open question on
	// CRLF handling) rather than collapsed into a single separator.
	allLines := splitKeepEmpty(string(buf))

	toSkip := r.Start - startSlot.Lines.Start
	toTake := r.End - r.Start

	if toSkip > uint64(len(allLines)) {
		return Content{}, nil
	}
	allLines = allLines[toSkip:]
	if toTake > uint64(len(allLines)) {
		toTake = uint64(len(allLines))
	}
	allLines = allLines[:toTake]

	content := make(Content, 0, len(allLines))
	for _, line := range allLines {
		content = append(content, Element{SourceID: g.SourceID, Content: line})
	}
	return content, nil
}

// splitKeepEmpty splits s on '\n' or '\r', keeping empty fields (unlike
// strings.FieldsFunc, which drops them) to preserve the CRLF
// double-split behavior described at its call site in GetEntries.
func splitKeepEmpty(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' || c == '\r' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

