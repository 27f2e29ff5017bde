package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func TestSplitText_Empty(t *testing.T) {
	if got := SplitText("", DefaultChunkOptions()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSplitText_Short(t *testing.T) {
	text := "A short lesson."
	got := SplitText(text, DefaultChunkOptions())
	if len(got) != 1 || got[0] != text {
		t.Errorf("expected single chunk %q, got %v", text, got)
	}
}

func TestSplitText_1700CharsGivesThreeChunks(t *testing.T) {
	text := strings.Repeat("abcdefghij", 170)
	chunks := SplitText(text, DefaultChunkOptions())

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{800, 800, 300}
	for i, c := range chunks {
		if len(c) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(c), wantLens[i])
		}
	}
	if chunks[1][:100] != chunks[0][700:] {
		t.Error("chunk 1 does not start with the last 100 characters of chunk 0")
	}
	if got := reconstruct(chunks, 100); got != text {
		t.Error("reconstruction does not match source text")
	}
}

func TestSplitText_PrefersSentenceBoundary(t *testing.T) {
	opts := ChunkOptions{Size: 50, Overlap: 10, Lookback: 20}
	text := "The first sentence is right here. Secondsentencewithoutanyspacesatallforsure and more words follow."
	chunks := SplitText(text, opts)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "here. ") {
		t.Errorf("first chunk should end at the sentence boundary, got %q", chunks[0])
	}
	if got := reconstruct(chunks, opts.Overlap); got != text {
		t.Errorf("reconstruction mismatch:\n got %q\nwant %q", got, text)
	}
}

func TestSplitText_ReconstructsVariedText(t *testing.T) {
	paragraph := "Embeddings map text to vectors. Similar meanings land close together!\n" +
		"Does retrieval always help? Not when the question is conversational.\n\n"
	inputs := []string{
		strings.Repeat(paragraph, 25),
		strings.Repeat("word ", 400),
		strings.Repeat("ünïcödé—текст ", 120),
		strings.Repeat("x", 2401),
	}
	opts := DefaultChunkOptions()
	for i, text := range inputs {
		chunks := SplitText(text, opts)
		for j, c := range chunks {
			if n := utf8.RuneCountInString(c); n > opts.Size {
				t.Errorf("input %d chunk %d has %d runes, over the %d limit", i, j, n, opts.Size)
			}
		}
		if got := reconstruct(chunks, opts.Overlap); got != text {
			t.Errorf("input %d: reconstruction mismatch", i)
		}
	}
}
