package tokenizer

import (
	"strings"
	"testing"
)

// collect reassembles input delivered in the given chunks and returns the
// concatenated literal text plus the marker kinds seen, in order.
func collect(t *testing.T, chunks []string) (string, []Kind) {
	t.Helper()
	r := NewReassembler(HarmonyTable())

	var text strings.Builder
	var markerKinds []Kind
	consume := func(tokens []Token) {
		for _, tok := range tokens {
			if tok.Kind == KindLiteral {
				text.WriteString(tok.Value)
			} else {
				markerKinds = append(markerKinds, tok.Kind)
			}
		}
	}
	for _, chunk := range chunks {
		consume(r.Feed(chunk))
	}
	consume(r.Flush())
	return text.String(), markerKinds
}

func TestReassemblerSplitInsideMarker(t *testing.T) {
	// Split exactly inside the word "channel".
	whole, wholeKinds := collect(t, []string{"<|channel|>final<|message|>Done.<|end|>"})
	split, splitKinds := collect(t, []string{"<|chan", "nel|>final<|message|>Done.<|end|>"})

	if whole != split {
		t.Errorf("literal text differs: whole=%q split=%q", whole, split)
	}
	if len(wholeKinds) != len(splitKinds) {
		t.Fatalf("marker kinds differ: whole=%v split=%v", wholeKinds, splitKinds)
	}
	for i := range wholeKinds {
		if wholeKinds[i] != splitKinds[i] {
			t.Errorf("marker %d: whole=%v split=%v", i, wholeKinds[i], splitKinds[i])
		}
	}
}

func TestReassemblerChunkBoundaryInvariance(t *testing.T) {
	input := `<|channel|>commentary to=functions.run <|constrain|>json<|message|>{"a":1}<|end|>tail text`

	wantText, wantKinds := collect(t, []string{input})

	// Every possible split point, including one byte at a time.
	for split := 1; split < len(input); split++ {
		gotText, gotKinds := collect(t, []string{input[:split], input[split:]})
		if gotText != wantText {
			t.Fatalf("split at %d: text %q, want %q", split, gotText, wantText)
		}
		if len(gotKinds) != len(wantKinds) {
			t.Fatalf("split at %d: kinds %v, want %v", split, gotKinds, wantKinds)
		}
	}

	bytes := make([]string, len(input))
	for i := range input {
		bytes[i] = input[i : i+1]
	}
	gotText, gotKinds := collect(t, bytes)
	if gotText != wantText {
		t.Errorf("byte-at-a-time: text %q, want %q", gotText, wantText)
	}
	if len(gotKinds) != len(wantKinds) {
		t.Errorf("byte-at-a-time: kinds %v, want %v", gotKinds, wantKinds)
	}
}

func TestReassemblerFlush(t *testing.T) {
	r := NewReassembler(HarmonyTable())

	tokens := r.Feed("text<|chan")
	if len(tokens) != 1 || tokens[0].Value != "text" {
		t.Fatalf("Feed() = %v, want single literal", tokens)
	}
	if r.Pending() == 0 {
		t.Error("expected held-back tail")
	}

	// The partially observed marker comes out as literal, never an error.
	flushed := r.Flush()
	if len(flushed) != 1 || flushed[0].Kind != KindLiteral || flushed[0].Value != "<|chan" {
		t.Fatalf("Flush() = %v, want literal tail", flushed)
	}

	// Flushing twice produces nothing, and the stream stays closed.
	if again := r.Flush(); again != nil {
		t.Errorf("second Flush() = %v, want nil", again)
	}
	if after := r.Feed("more"); after != nil {
		t.Errorf("Feed() after Flush = %v, want nil", after)
	}
}
