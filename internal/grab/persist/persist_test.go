package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mimecast/dgrab/internal/grab/slot"
)

func sampleIndex() slot.Index {
	return slot.Index{
		LineCount: 7,
		Slots: []slot.Slot{
			{Bytes: slot.ByteRange{Start: 0, End: 10}, Lines: slot.LineRange{Start: 0, End: 4}},
			{Bytes: slot.ByteRange{Start: 10, End: 20}, Lines: slot.LineRange{Start: 4, End: 7}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.zst")
	want := sampleIndex()

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.zst"))
	require.Error(t, err)
}

func TestSaveOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.zst")
	require.NoError(t, Save(path, sampleIndex()))

	second := sampleIndex()
	second.LineCount = 99
	require.NoError(t, Save(path, second))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(99), got.LineCount)
}
