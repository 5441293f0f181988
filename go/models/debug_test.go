package models

import (
	"strings"
	"testing"
)

func TestRepr(t *testing.T) {
	tests := []struct {
		in      string
		strsize int
		out     string
	}{
		{"hi", 0, `"hi"`},
		{"a\x00\n", 0, `"a\x00\x0a"`},
		{"hello world", 8, `"hello"...`},
	}
	for _, test := range tests {
		if got := Repr([]byte(test.in), test.strsize); got != test.out {
			t.Errorf("Repr(%q, %d) = %s, want %s", test.in, test.strsize, got, test.out)
		}
	}
}

func TestHexDump(t *testing.T) {
	lines := HexDump(0x400000, []byte("ABCDEFGHIJ"), 64)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0x0000000000400000: 4142434445464748 494a") {
		t.Fatalf("got %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "[ABCDEFGH IJ      ]") {
		t.Fatalf("got %q", lines[0])
	}
	if HexDump(0, nil, 64) != nil {
		t.Fatal("non-empty dump of no bytes")
	}
}
