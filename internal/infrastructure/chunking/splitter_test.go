package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if chunks := s.Split("   \n  "); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("a short passage")
	if len(chunks) != 1 || chunks[0] != "a short passage" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitPrefersWordBoundaries(t *testing.T) {
	words := strings.Repeat("lexicon ", 60) // 480 runes
	s := NewSplitter(100, 20)
	chunks := s.Split(words)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 100 {
			t.Fatalf("chunk %d exceeds size: %d runes", i, len([]rune(chunk)))
		}
		for _, w := range strings.Fields(chunk) {
			if w != "lexicon" {
				t.Fatalf("chunk %d split a word: %q", i, w)
			}
		}
	}
}

func TestSplitUnbrokenTextStillAdvances(t *testing.T) {
	blob := strings.Repeat("x", 950)
	s := NewSplitter(300, 50)
	chunks := s.Split(blob)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total < 950 {
		t.Fatalf("chunks lost content: total %d runes", total)
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	words := strings.Repeat("alpha beta gamma delta ", 30)
	s := NewSplitter(120, 40)
	chunks := s.Split(words)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Tail of chunk 0 should reappear at the head of chunk 1.
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Fatalf("overlap missing: tail %q not in %q", tail, chunks[1][:40])
	}
}
