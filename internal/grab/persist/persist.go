// Package persist saves and loads a slot.Index to and from disk, the Go
// realization of grabber.rs's export_slots/load_metadata: a serialized
// SlotIndex a caller can hand back to a future Grabber instead of
// re-scanning an unchanged file. Where the original used bincode over a
// plain file, this encodes with encoding/gob and wraps the output with
// the teacher's own zstd dependency, since a SlotIndex's byte ranges
// compress well and the teacher already carries the codec.
package persist

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"

	"github.com/DataDog/zstd"
	"github.com/natefinch/atomic"

	"github.com/mimecast/dgrab/internal/grab/graberr"
	"github.com/mimecast/dgrab/internal/grab/slot"
)

// Save encodes idx and writes it to path, compressed, via an atomic
// rename so a crash mid-write never leaves a torn file behind.
func Save(path string, idx slot.Index) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(idx); err != nil {
		return graberr.Wrap(graberr.InvalidData, err, "encoding slot index")
	}

	compressed, err := zstd.Compress(nil, raw.Bytes())
	if err != nil {
		return graberr.Wrap(graberr.InvalidData, err, "compressing slot index")
	}

	if err := atomic.WriteFile(path, bytes.NewReader(compressed)); err != nil {
		return graberr.Wrap(graberr.IoOperation, err, "writing slot index to %s", path)
	}
	return nil
}

// Load reads and decodes a slot.Index previously written by Save.
func Load(path string) (slot.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return slot.Index{}, graberr.Wrap(graberr.Config, err, "opening slot index %s", path)
	}
	defer f.Close()

	compressed, err := io.ReadAll(f)
	if err != nil {
		return slot.Index{}, graberr.Wrap(graberr.IoOperation, err, "reading slot index %s", path)
	}

	raw, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return slot.Index{}, graberr.Wrap(graberr.InvalidData, err, "decompressing slot index %s", path)
	}

	var idx slot.Index
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&idx); err != nil {
		return slot.Index{}, graberr.Wrap(graberr.InvalidData, err, "decoding slot index %s", path)
	}
	return idx, nil
}
