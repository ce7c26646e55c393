// Package source implements the MetadataSource adapters of spec §4.4:
// pluggable metadata producers selected by a file-type classifier, the
// Go equivalent of the teacher's per-mode dispatch in
// internal/server/handlers/readcommand.go (a switch over a small enum
// picking the concrete reader/processor for the file at hand).
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mimecast/dgrab/internal/grab/graberr"
	"github.com/mimecast/dgrab/internal/grab/metadata"
	"github.com/mimecast/dgrab/internal/grab/slot"
	"github.com/mimecast/dgrab/internal/grabconfig"
)

// Kind classifies which MetadataSource implementation a file should use.
type Kind int

const (
	KindText Kind = iota
	KindDomainBinary
)

// Classify picks a Kind from a file's extension: "dlt" routes to the
// domain-binary source, "txt"/"text"/unknown/no-extension route to text,
// matching spec §4.4.
func Classify(path string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "dlt":
		return KindDomainBinary
	default:
		return KindText
	}
}

// MetadataSource builds a slot.Index for its associated file.
type MetadataSource interface {
	// FromFile builds metadata for this source's path. stopped is true
	// iff the build was cancelled via ctx before completion.
	FromFile(ctx context.Context, progress chan<- metadata.Progress) (idx slot.Index, stopped bool, err error)
	// AssociatedFile returns the path this source reads from.
	AssociatedFile() string
	// SourceID identifies this source in returned GrabbedElements.
	SourceID() string
}

// TextSource builds metadata for newline-delimited text files using the
// §4.2 streaming builder directly.
type TextSource struct {
	path     string
	sourceID string
	slotSize int
}

// NewTextSource constructs a TextSource over path.
func NewTextSource(path, sourceID string) *TextSource {
	return &TextSource{path: path, sourceID: sourceID, slotSize: grabconfig.DefaultSlotSize}
}

func (s *TextSource) FromFile(ctx context.Context, progress chan<- metadata.Progress) (slot.Index, bool, error) {
	return metadata.BuildWithProgress(ctx, s.path, s.slotSize, progress)
}

func (s *TextSource) AssociatedFile() string { return s.path }
func (s *TextSource) SourceID() string       { return s.sourceID }

// DomainBinarySource stands in for the domain-specific binary-log parser
// (the "Dlt" source of spec §1/§4.4). The real record-boundary parser is
// explicitly out of scope; this adapter satisfies the MetadataSource
// contract with a trivial single-slot SlotIndex covering the whole file,
// so the interface, the classifier, and the session's dispatch over it
// are exercised end-to-end, while making no claim to have located actual
// record boundaries: a real binary source would slot by record, not by
// one arbitrary byte span.
type DomainBinarySource struct {
	path     string
	sourceID string
}

// NewDomainBinarySource constructs a DomainBinarySource over path.
func NewDomainBinarySource(path, sourceID string) *DomainBinarySource {
	return &DomainBinarySource{path: path, sourceID: sourceID}
}

func (s *DomainBinarySource) FromFile(ctx context.Context, progress chan<- metadata.Progress) (slot.Index, bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return slot.Index{}, false, graberr.Wrap(graberr.Config, err, "could not determine size of %s", s.path)
	}

	// A slotSize spanning the whole file forces the streaming builder to
	// fill its buffer once and stop, producing exactly one slot — the
	// line count it derives is still a real newline count, just not
	// real record boundaries.
	slotSize := int(info.Size())
	if slotSize <= 0 {
		slotSize = grabconfig.DefaultSlotSize
	}
	return metadata.BuildWithProgress(ctx, s.path, slotSize, progress)
}

func (s *DomainBinarySource) AssociatedFile() string { return s.path }
func (s *DomainBinarySource) SourceID() string       { return s.sourceID }

// New builds the MetadataSource appropriate for path's classified Kind.
func New(path, sourceID string) MetadataSource {
	switch Classify(path) {
	case KindDomainBinary:
		return NewDomainBinarySource(path, sourceID)
	default:
		return NewTextSource(path, sourceID)
	}
}
