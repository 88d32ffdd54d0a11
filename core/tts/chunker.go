package tts

import "strings"

// sentenceEnders are the boundary patterns searched when a chunk must be
// split. The rightmost match inside the window wins.
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// SplitIntoChunks splits text into pieces no longer than maxChunkChars,
// preferring sentence boundaries, then line breaks, then a hard cut.
// Text that already fits is returned as a single chunk untouched.
func SplitIntoChunks(text string, maxChunkChars int) []string {
	if len(text) <= maxChunkChars {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= maxChunkChars {
			chunks = append(chunks, strings.TrimSpace(remaining))
			break
		}

		window := remaining[:maxChunkChars]
		splitAt := lastBoundary(window)
		if splitAt <= 0 {
			splitAt = maxChunkChars
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:splitAt]))
		remaining = strings.TrimSpace(remaining[splitAt:])
	}

	// Trimming can leave empty pieces; drop them.
	out := chunks[:0]
	for _, chunk := range chunks {
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// lastBoundary returns the position just after the rightmost sentence
// ender in the window, falling back to the position after the last line
// break. Returns 0 when no boundary exists.
func lastBoundary(window string) int {
	boundary := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(window, ender); idx > boundary {
			boundary = idx + len(ender)
		}
	}
	if boundary > 0 {
		return boundary
	}

	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	return 0
}
