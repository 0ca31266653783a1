// Package trace reads and generates cache-access trace events: parsing
// the line-oriented wire format (spec.md §6) from a file or stdin, and
// synthesizing canonical access patterns for demos and tests.
package trace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ftahirops/cacheexplorer/model"
)

// ParseError reports a line that failed to yield a valid event. Per
// spec.md §7, a ParseError is never fatal: the caller skips the line,
// emits a diagnostic, and keeps processing.
type ParseError struct {
	LineNo int
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace: line %d: %s: %q", e.LineNo, e.Reason, e.Line)
}

// ParseLine parses one wire-format line into a TraceEvent. ok is false
// for a blank line or a `#` comment, with err nil in that case. lineNo
// is only used to annotate a returned *ParseError.
func ParseLine(line string, lineNo int) (event model.TraceEvent, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return model.TraceEvent{}, false, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "too few fields"}
	}

	event, err = applyTypeLetter(fields[0])
	if err != nil {
		return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: err.Error()}
	}
	fields = fields[1:]

	addr, err := parseHex(fields[0])
	if err != nil {
		return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "bad address: " + err.Error()}
	}
	event.Address = addr
	fields = fields[1:]

	if event.IsMemcpy || event.IsMemmove {
		if len(fields) == 0 {
			return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "memcpy/memmove requires a source address"}
		}
		src, err := parseHex(fields[0])
		if err != nil {
			return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "bad src address: " + err.Error()}
		}
		event.SrcAddress = src
		event.HasSrc = true
		fields = fields[1:]
	}

	if len(fields) == 0 {
		return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "missing size"}
	}
	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil || size == 0 {
		return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "size must be a positive decimal"}
	}
	event.Size = size
	fields = fields[1:]

	event.ThreadID = 1
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "T"):
			thread, err := strconv.ParseUint(f[1:], 10, 32)
			if err != nil {
				return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "bad thread id"}
			}
			event.ThreadID = uint32(thread)
		case strings.Contains(f, ":"):
			idx := strings.LastIndex(f, ":")
			lineNum, err := strconv.ParseUint(f[idx+1:], 10, 32)
			if err != nil {
				return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "bad file:line"}
			}
			event.File = f[:idx]
			event.Line = uint32(lineNum)
			event.HasLocation = true
		default:
			return model.TraceEvent{}, false, &ParseError{LineNo: lineNo, Line: line, Reason: "unrecognized trailing field"}
		}
	}

	return event, true, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strconv.ParseUint(s, 16, 64)
}

// applyTypeLetter sets the flag fields for the type token (spec.md §6's
// table), which may carry a trailing digit for the P<n> prefetch hint.
func applyTypeLetter(tok string) (model.TraceEvent, error) {
	var e model.TraceEvent
	letter := tok[0]
	switch letter {
	case 'L', 'l', 'R', 'r':
		// default load, nothing to set
	case 'S', 's':
		e.IsWrite = true
	case 'I', 'i':
		e.IsICache = true
	case 'P':
		if len(tok) < 2 {
			return e, fmt.Errorf("prefetch type requires a hint digit")
		}
		hint, err := strconv.ParseUint(tok[1:], 10, 8)
		if err != nil || hint > 3 {
			return e, fmt.Errorf("prefetch hint must be 0-3")
		}
		e.IsPrefetch = true
		e.PrefetchHint = uint8(hint)
	case 'V':
		e.IsVector = true
	case 'U':
		e.IsVector = true
		e.IsWrite = true
	case 'A':
		e.IsAtomic = true
	case 'X':
		e.IsAtomic = true
		e.IsWrite = true
		e.IsRMW = true
	case 'C':
		e.IsAtomic = true
		e.IsCmpxchg = true
	case 'Z':
		e.IsMemset = true
		e.IsWrite = true
	case 'M':
		e.IsMemcpy = true
		e.IsWrite = true
	case 'O':
		e.IsMemmove = true
		e.IsWrite = true
	default:
		return e, fmt.Errorf("unknown type letter %q", string(letter))
	}
	return e, nil
}
