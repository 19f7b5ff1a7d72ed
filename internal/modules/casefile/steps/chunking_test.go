package steps

import (
	"strings"
	"testing"
)

func TestSplitIntoChunks_ShortTextSingleChunk(t *testing.T) {
	text := "The patient presented with lower back pain."
	chunks := SplitIntoChunks(text, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Fatalf("single chunk must be the input unchanged")
	}
}

func TestSplitIntoChunks_Reconstruction(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Visit note ")
		b.WriteString(strings.Repeat("x", i%37))
		if i%5 == 0 {
			b.WriteString(".\n\n")
		} else {
			b.WriteString(". ")
		}
	}
	text := b.String()

	for _, maxSize := range []int{50, 100, 333, 1000} {
		chunks := SplitIntoChunks(text, maxSize)
		if len(chunks) < 2 {
			t.Fatalf("maxSize=%d: expected multiple chunks", maxSize)
		}
		if got := strings.Join(chunks, ""); got != text {
			t.Fatalf("maxSize=%d: concatenated chunks do not reconstruct input", maxSize)
		}
		for i, c := range chunks {
			if len(c) > maxSize {
				t.Fatalf("maxSize=%d: chunk %d has %d bytes", maxSize, i, len(c))
			}
			if len(c) == 0 {
				t.Fatalf("maxSize=%d: chunk %d is empty", maxSize, i)
			}
		}
	}
}

func TestSplitIntoChunks_PrefersParagraphBreak(t *testing.T) {
	para := strings.Repeat("a", 80) + "\n\n"
	text := para + strings.Repeat("b", 80)
	chunks := SplitIntoChunks(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Fatalf("first chunk should end at the paragraph break, got %q tail", chunks[0][len(chunks[0])-5:])
	}
}

func TestSplitIntoChunks_SentenceBreakFallback(t *testing.T) {
	// No paragraph breaks; the sentence end sits past the floor.
	text := strings.Repeat("c", 80) + ". " + strings.Repeat("d", 80)
	chunks := SplitIntoChunks(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ". ") {
		t.Fatalf("first chunk should end at the sentence break")
	}
}

func TestSplitIntoChunks_HardCutWhenBreaksTooEarly(t *testing.T) {
	// The only break is in the first 10% of the window, below the floor.
	text := "Short. " + strings.Repeat("e", 300)
	chunks := SplitIntoChunks(text, 100)
	if len(chunks[0]) != 100 {
		t.Fatalf("expected a hard cut at maxSize, got %d bytes", len(chunks[0]))
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Fatalf("hard-cut chunks must still reconstruct the input")
	}
}
