package trace

import "testing"

func TestParseLineDefaultLoad(t *testing.T) {
	e, ok, err := ParseLine("L 0x1000 4", 1)
	if err != nil || !ok {
		t.Fatalf("ParseLine error=%v ok=%v", err, ok)
	}
	if e.Address != 0x1000 || e.Size != 4 || e.IsWrite {
		t.Fatalf("e = %+v", e)
	}
	if e.ThreadID != 1 {
		t.Fatalf("thread = %d, want default 1", e.ThreadID)
	}
}

func TestParseLineStoreWithLocationAndThread(t *testing.T) {
	e, ok, err := ParseLine("S 2000 8 main.c:42 T3", 1)
	if err != nil || !ok {
		t.Fatalf("ParseLine error=%v ok=%v", err, ok)
	}
	if !e.IsWrite {
		t.Fatal("S should set IsWrite")
	}
	if e.File != "main.c" || e.Line != 42 {
		t.Fatalf("file:line = %s:%d", e.File, e.Line)
	}
	if e.ThreadID != 3 {
		t.Fatalf("thread = %d, want 3", e.ThreadID)
	}
}

func TestParseLinePrefetchHint(t *testing.T) {
	e, ok, err := ParseLine("P2 0x4000 64", 1)
	if err != nil || !ok {
		t.Fatalf("ParseLine error=%v ok=%v", err, ok)
	}
	if !e.IsPrefetch || e.PrefetchHint != 2 {
		t.Fatalf("e = %+v", e)
	}
}

func TestParseLineMemcpyRequiresSrc(t *testing.T) {
	e, ok, err := ParseLine("M 0x2000 0x1000 64", 1)
	if err != nil || !ok {
		t.Fatalf("ParseLine error=%v ok=%v", err, ok)
	}
	if !e.IsMemcpy || !e.HasSrc || e.SrcAddress != 0x1000 {
		t.Fatalf("e = %+v", e)
	}
}

func TestParseLineMemcpyMissingSrcIsError(t *testing.T) {
	_, ok, err := ParseLine("M 0x2000 64", 1)
	if err == nil || ok {
		t.Fatal("memcpy without a source address must be a ParseError")
	}
}

func TestParseLineZeroSizeIsError(t *testing.T) {
	_, ok, err := ParseLine("L 0x1000 0", 1)
	if err == nil || ok {
		t.Fatal("size=0 must be rejected")
	}
}

func TestParseLineBadTypeLetterIsError(t *testing.T) {
	_, ok, err := ParseLine("Q 0x1000 4", 1)
	if err == nil || ok {
		t.Fatal("unknown type letter must be rejected")
	}
}

func TestParseLineMalformedHexIsError(t *testing.T) {
	_, ok, err := ParseLine("L zzzz 4", 1)
	if err == nil || ok {
		t.Fatal("malformed address must be rejected")
	}
}

func TestParseLineBlankAndCommentSkipped(t *testing.T) {
	if _, ok, err := ParseLine("", 1); ok || err != nil {
		t.Fatal("blank line should be skipped with no error")
	}
	if _, ok, err := ParseLine("   # a comment", 1); ok || err != nil {
		t.Fatal("comment line should be skipped with no error")
	}
}

func TestParseLineAtomicCmpxchg(t *testing.T) {
	e, ok, err := ParseLine("C 0x1000 4", 1)
	if err != nil || !ok {
		t.Fatalf("ParseLine error=%v ok=%v", err, ok)
	}
	if !e.IsAtomic || !e.IsCmpxchg {
		t.Fatalf("e = %+v", e)
	}
}
