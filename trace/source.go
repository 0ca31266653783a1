package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ftahirops/cacheexplorer/model"
)

// Source yields trace events one at a time. Next returns ok=false with
// a nil error at end of stream; a non-nil err is a fatal read failure
// (distinct from a per-line ParseError, which Source implementations
// report through onParseError and otherwise skip).
type Source interface {
	Next() (event model.TraceEvent, ok bool, err error)
}

// LineSource reads wire-format trace events line by line from r,
// skipping and reporting any line that fails to parse (spec.md §7's
// TraceParseError: never fatal).
type LineSource struct {
	scanner      *bufio.Scanner
	lineNo       int
	onParseError func(error)
	closer       io.Closer
}

// NewLineSource wraps r as a LineSource. onParseError, if non-nil, is
// called for every skipped line; it may be nil to silently skip.
func NewLineSource(r io.Reader, onParseError func(error)) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r), onParseError: onParseError}
}

// OpenFileSource opens path and returns a LineSource that closes it
// when the caller calls Close.
func OpenFileSource(path string, onParseError func(error)) (*LineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	src := NewLineSource(f, onParseError)
	src.closer = f
	return src, nil
}

// NewStdinSource reads trace events from os.Stdin.
func NewStdinSource(onParseError func(error)) *LineSource {
	return NewLineSource(os.Stdin, onParseError)
}

// Next returns the next successfully parsed event, skipping over and
// reporting malformed lines and comments/blanks along the way.
func (s *LineSource) Next() (model.TraceEvent, bool, error) {
	for s.scanner.Scan() {
		s.lineNo++
		event, ok, err := ParseLine(s.scanner.Text(), s.lineNo)
		if err != nil {
			if s.onParseError != nil {
				s.onParseError(err)
			}
			continue
		}
		if !ok {
			continue
		}
		return event, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return model.TraceEvent{}, false, fmt.Errorf("trace: read: %w", err)
	}
	return model.TraceEvent{}, false, nil
}

// Close releases the underlying file, if this source was opened from
// one. It is a no-op for a source built over an arbitrary io.Reader.
func (s *LineSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SliceSource replays a pre-built slice of events, used to drive a
// hierarchy from a Generator's output.
type SliceSource struct {
	events []model.TraceEvent
	pos    int
}

// NewSliceSource wraps events as a Source.
func NewSliceSource(events []model.TraceEvent) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the events in order, then ok=false once exhausted.
func (s *SliceSource) Next() (model.TraceEvent, bool, error) {
	if s.pos >= len(s.events) {
		return model.TraceEvent{}, false, nil
	}
	event := s.events[s.pos]
	s.pos++
	return event, true, nil
}
