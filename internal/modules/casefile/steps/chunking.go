package steps

import "strings"

// DefaultMaxChunkSize is the largest text span sent to the oracle in one call.
const DefaultMaxChunkSize = 12000

// breakFloorPercent: a backward break is only accepted when it lands at or
// after this share of the window, so boundary search never produces
// pathologically tiny chunks.
const breakFloorPercent = 70

var sentenceBreaks = []string{". ", ".\n", "! ", "!\n", "? ", "?\n"}

// SplitIntoChunks slices text into contiguous, non-overlapping chunks of at
// most maxSize bytes. Chunks concatenated in order reconstruct the input
// exactly. Boundaries prefer a paragraph break, then a sentence-ending break,
// and fall back to the hard window edge when neither lands late enough in the
// window.
func SplitIntoChunks(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	floor := maxSize * breakFloorPercent / 100
	var chunks []string
	start := 0
	for start < len(text) {
		remaining := len(text) - start
		if remaining <= maxSize {
			chunks = append(chunks, text[start:])
			break
		}

		window := text[start : start+maxSize]
		cut := -1

		if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
			cand := idx + 2
			if cand >= floor {
				cut = cand
			}
		}
		if cut < 0 {
			best := -1
			for _, sep := range sentenceBreaks {
				if idx := strings.LastIndex(window, sep); idx >= 0 {
					if cand := idx + len(sep); cand > best {
						best = cand
					}
				}
			}
			if best >= floor {
				cut = best
			}
		}
		if cut < 0 {
			cut = maxSize
		}

		chunks = append(chunks, text[start:start+cut])
		start += cut
	}
	return chunks
}
