package service

import "strings"

// ChunkConfig controls how document text is split before embedding.
type ChunkConfig struct {
	// Size is the target chunk length in runes.
	Size int
	// Overlap is carried from the end of one chunk into the next for
	// context continuity.
	Overlap int
	// Lookahead bounds the forward search for a newline or space so a
	// chunk never severs a word mid-boundary.
	Lookahead int
	// MinChars discards trimmed segments shorter than this (noise from
	// Q&A fragments and page boundaries).
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:      800,
		Overlap:   100,
		Lookahead: 100,
		MinChars:  20,
	}
}

// ChunkText splits text into overlapping segments suitable for embedding.
// It is pure and deterministic, and terminates for any finite input,
// including pathological configurations where Overlap >= Size.
//
// Each window prefers to end at the first newline within the lookahead,
// then the first space, else the naive boundary. The next window starts
// Overlap runes before the previous end.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		sliceEnd := end

		if end < len(runes) {
			if cut := boundaryCut(runes, end, cfg.Lookahead); cut > 0 {
				end = cut
			}
			sliceEnd = end
		} else {
			sliceEnd = len(runes)
		}

		segment := strings.TrimSpace(string(runes[start:sliceEnd]))
		if len([]rune(segment)) >= cfg.MinChars {
			chunks = append(chunks, segment)
		}

		// Overlapping restart; forced forward whenever the overlap
		// configuration would stall the cursor.
		next := end - cfg.Overlap
		if cfg.Overlap >= cfg.Size || next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// boundaryCut searches [pos, pos+lookahead) for a newline, then a space, and
// returns the index just past it. Returns 0 when no boundary is found.
func boundaryCut(runes []rune, pos, lookahead int) int {
	limit := pos + lookahead
	if limit > len(runes) {
		limit = len(runes)
	}

	for i := pos; i < limit; i++ {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := pos; i < limit; i++ {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return 0
}
