package ingest

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
	DefaultLookback     = 80
)

// ChunkOptions sizes are counted in characters (runes).
type ChunkOptions struct {
	Size    int
	Overlap int
	// Lookback bounds how far before Size a sentence or line boundary is searched for when
	// a split would land inside a word.
	Lookback int
}

func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap, Lookback: DefaultLookback}
}

func (o ChunkOptions) normalized() ChunkOptions {
	if o.Size <= 0 {
		o.Size = DefaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = 0
	}
	if o.Lookback < 0 {
		o.Lookback = 0
	}
	return o
}

// SplitText cuts text into chunks of at most Size runes. Each chunk after the first starts
// Overlap runes before the end of its predecessor, so dropping the first Overlap runes of
// every chunk but the first and concatenating gives back text exactly.
func SplitText(text string, opts ChunkOptions) []string {
	opts = opts.normalized()
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for {
		end := start + opts.Size
		if end >= n {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		if midToken(runes, end) {
			if b := findBoundary(runes, start, end, opts); b > 0 {
				end = b
			}
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - opts.Overlap
	}
	return chunks
}

func midToken(runes []rune, pos int) bool {
	return !unicode.IsSpace(runes[pos-1]) && !unicode.IsSpace(runes[pos])
}

// findBoundary looks back from end for the latest position just after a line break or
// after sentence-ending punctuation plus whitespace. It never returns a position that
// would stop the next chunk from advancing past start.
func findBoundary(runes []rune, start, end int, opts ChunkOptions) int {
	lower := end - opts.Lookback
	if floor := start + opts.Overlap + 1; lower < floor {
		lower = floor
	}
	for p := end - 1; p >= lower; p-- {
		if isBoundary(runes, p) {
			return p
		}
	}
	return 0
}

func isBoundary(runes []rune, p int) bool {
	prev := runes[p-1]
	if prev == '\n' {
		return true
	}
	return unicode.IsSpace(prev) && p >= 2 && strings.ContainsRune(".!?", runes[p-2])
}
