package search

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestExecuteLiteralMatch(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&buf, "line_%d\n", i)
	}
	path := writeTempFile(t, buf.String())

	resultsPath, matched, err := Execute(context.Background(), path, []Filter{{Value: "line_42"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), matched)

	data, err := os.ReadFile(resultsPath)
	require.NoError(t, err)
	require.Equal(t, "42\n", string(data))
}

func TestExecuteConjunction(t *testing.T) {
	path := writeTempFile(t, "foo bar\nfoo baz\nbar baz\n")
	_, matched, err := Execute(context.Background(), path, []Filter{
		{Value: "foo"},
		{Value: "bar"},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), matched)
}

func TestExecuteIgnoreCase(t *testing.T) {
	path := writeTempFile(t, "FOO\nfoo\nbar\n")
	_, matched, err := Execute(context.Background(), path, []Filter{
		{Value: "foo", IgnoreCase: true},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), matched)
}

func TestExecuteRegex(t *testing.T) {
	path := writeTempFile(t, "err: boom\nok\nerr: oops\n")
	_, matched, err := Execute(context.Background(), path, []Filter{
		{Value: `^err:`, IsRegex: true},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), matched)
}

func TestExecuteWordBoundary(t *testing.T) {
	path := writeTempFile(t, "cat\nconcatenate\ncat food\n")
	_, matched, err := Execute(context.Background(), path, []Filter{
		{Value: "cat", IsWord: true},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), matched)
}

func TestExecuteInvalidRegex(t *testing.T) {
	path := writeTempFile(t, "x\n")
	_, _, err := Execute(context.Background(), path, []Filter{
		{Value: "(unterminated", IsRegex: true},
	})
	require.Error(t, err)
}

func TestExecuteNoMatches(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc\n")
	_, matched, err := Execute(context.Background(), path, []Filter{{Value: "zzz"}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), matched)
}

func TestExecuteResultsFileLineNumbers(t *testing.T) {
	path := writeTempFile(t, "skip\nmatch\nskip\nmatch\n")
	resultsPath, matched, err := Execute(context.Background(), path, []Filter{{Value: "match"}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), matched)

	data, err := os.ReadFile(resultsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{"1", "3"}, lines)
	for _, l := range lines {
		_, err := strconv.ParseUint(l, 10, 64)
		require.NoError(t, err)
	}
}
