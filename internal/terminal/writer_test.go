package terminal

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestWriterSerializesLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Fprintf(w, "line %02d\n", i)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Fatalf("got %d lines, want 50", len(lines))
	}
	for _, l := range lines {
		if len(l) != len("line 00") {
			t.Errorf("interleaved line %q", l)
		}
	}
}

func TestNewWriterDoesNotDoubleWrap(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	if NewWriter(w) != w {
		t.Error("NewWriter(*Writer) should return the same writer")
	}
}
