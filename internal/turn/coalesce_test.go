package turn

import (
	"strings"
	"testing"
)

func TestCoalescerMergesSmallDeltas(t *testing.T) {
	c := newDeltaCoalescer(24)
	var out []string
	for _, tok := range []string{"Hel", "lo", " there", ", how", " are", " you", " today", "?"} {
		out = append(out, c.Consume(tok)...)
	}
	out = append(out, c.Finalize()...)

	if len(out) == 0 {
		t.Fatal("coalescer emitted nothing")
	}
	if got := strings.Join(out, ""); got != "Hello there, how are you today?" {
		t.Fatalf("joined output = %q", got)
	}
	if len(out) >= 8 {
		t.Fatalf("len(out) = %d, want fewer chunks than input deltas", len(out))
	}
}

func TestCoalescerFirstChunkIsEager(t *testing.T) {
	c := newDeltaCoalescer(48)
	out := c.Consume("Hi. The rest of this sentence keeps going for a while")
	if len(out) == 0 {
		t.Fatal("expected an early first chunk at the sentence boundary")
	}
	if !strings.HasPrefix(out[0], "Hi.") {
		t.Fatalf("out[0] = %q, want it to start with %q", out[0], "Hi.")
	}
}

func TestCoalescerFinalizeFlushesRemainder(t *testing.T) {
	c := newDeltaCoalescer(48)
	c.Consume("short")
	out := c.Finalize()
	if len(out) != 1 || out[0] != "short" {
		t.Fatalf("Finalize = %v, want [short]", out)
	}
}

func TestCoalescerEmptyDelta(t *testing.T) {
	c := newDeltaCoalescer(48)
	if out := c.Consume(""); out != nil {
		t.Fatalf("Consume(\"\") = %v, want nil", out)
	}
}
