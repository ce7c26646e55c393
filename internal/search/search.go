// Package search implements the filter-based search executor of spec
// §4.5: it applies a conjunction of SearchFilters to a file and writes
// the zero-based line index of every matching line into a results file
// adjacent to the target, one decimal integer per line. The underlying
// match primitive (literal-pattern fast path falling back to compiled
// regexp) is grounded on the teacher's internal/regex.Regex, reused for
// the same literal/regex split and case-insensitive behavior;
// word-boundary matching is added since grep-for-log-search needs it
// even though the teacher's own grep command never exposed it.
package search

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/mimecast/dgrab/internal/grab/graberr"
)

// Filter mirrors spec's SearchFilter: a value plus how it should match.
type Filter struct {
	Value      string
	IsRegex    bool
	IgnoreCase bool
	IsWord     bool
}

// compiled is a single filter compiled into a matcher, following the
// teacher's literal-vs-regex split: a pattern with no regex
// metacharacters is matched with strings.Contains instead of paying for
// regexp.
type compiled struct {
	literal    string
	isLiteral  bool
	ignoreCase bool
	re         *regexp.Regexp
}

var metaChars = `.+*?^$[]{}()|\`

func isLiteralPattern(pattern string) bool {
	return !strings.ContainsAny(pattern, metaChars)
}

func compileFilter(f Filter) (compiled, error) {
	pattern := f.Value
	if f.IsWord {
		word := f.Value
		if !f.IsRegex {
			word = regexp.QuoteMeta(word)
		}
		pattern = `\b(?:` + word + `)\b`
	}

	if !f.IsRegex && !f.IsWord && isLiteralPattern(f.Value) {
		lit := f.Value
		if f.IgnoreCase {
			lit = strings.ToLower(lit)
		}
		return compiled{literal: lit, isLiteral: true, ignoreCase: f.IgnoreCase}, nil
	}

	if !f.IsRegex && !f.IsWord {
		pattern = regexp.QuoteMeta(f.Value)
	}
	if f.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiled{}, graberr.Wrap(graberr.Protocol, err, "compiling filter %q", f.Value)
	}
	return compiled{re: re}, nil
}

func (c compiled) match(line string) bool {
	if c.isLiteral {
		if c.ignoreCase {
			return strings.Contains(strings.ToLower(line), c.literal)
		}
		return strings.Contains(line, c.literal)
	}
	return c.re.MatchString(line)
}

// predicate composes filters into a single conjunction predicate (spec
// §4.5, Open Question 2 resolved as AND — see DESIGN.md).
type predicate struct {
	filters []compiled
}

func newPredicate(filters []Filter) (predicate, error) {
	compiledFilters := make([]compiled, 0, len(filters))
	for _, f := range filters {
		c, err := compileFilter(f)
		if err != nil {
			return predicate{}, err
		}
		compiledFilters = append(compiledFilters, c)
	}
	return predicate{filters: compiledFilters}, nil
}

func (p predicate) match(line string) bool {
	if len(p.filters) == 0 {
		return true
	}
	for _, c := range p.filters {
		if !c.match(line) {
			return false
		}
	}
	return true
}

// ResultsFileSuffix names the results file written adjacent to a search
// target, per spec §6's "deterministic location" requirement.
const ResultsFileSuffix = ".dgrab-matches"

// Execute scans path line by line, writing the zero-based index of every
// line matching the conjunction of filters to a results file, one
// decimal integer per line. It returns the results file path and match
// count.
func Execute(ctx context.Context, path string, filters []Filter) (resultsPath string, matched uint64, err error) {
	pred, err := newPredicate(filters)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, graberr.Wrap(graberr.IoOperation, err, "opening %s for search", path)
	}
	defer f.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var lineIdx uint64
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return "", 0, graberr.Wrap(graberr.Interrupted, ctx.Err(), "search cancelled")
		default:
		}
		if pred.match(scanner.Text()) {
			fmt.Fprintf(&out, "%d\n", lineIdx)
			matched++
		}
		lineIdx++
	}
	if err := scanner.Err(); err != nil {
		return "", 0, graberr.Wrap(graberr.IoOperation, err, "scanning %s", path)
	}

	resultsPath = path + ResultsFileSuffix
	if err := atomic.WriteFile(resultsPath, strings.NewReader(out.String())); err != nil {
		return "", 0, graberr.Wrap(graberr.IoOperation, err, "writing results file %s", resultsPath)
	}
	return resultsPath, matched, nil
}
