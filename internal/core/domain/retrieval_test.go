package domain

import "testing"

func TestDedupePassagesKeepsFirstOccurrence(t *testing.T) {
	passages := []Passage{
		{ID: "1", Content: "alpha", Score: 0.9},
		{ID: "2", Content: "beta", Score: 0.8},
		{ID: "3", Content: "alpha", Score: 0.7},
		{ID: "4", Content: "gamma", Score: 0.6},
		{ID: "5", Content: "beta", Score: 0.5},
	}

	out := DedupePassages(passages)
	if len(out) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(out))
	}
	if out[0].ID != "1" || out[1].ID != "2" || out[2].ID != "4" {
		t.Fatalf("order or survivors wrong: %+v", out)
	}
}

func TestDedupePassagesDistinctIDsSameContent(t *testing.T) {
	// Same text indexed under different point ids still collapses.
	passages := []Passage{
		{ID: "a", Content: "identical text"},
		{ID: "b", Content: "identical text"},
	}
	if out := DedupePassages(passages); len(out) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(out))
	}
}

func TestDedupePassagesEmpty(t *testing.T) {
	if out := DedupePassages(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}

func TestJoinPassageContents(t *testing.T) {
	passages := []Passage{
		{Content: "one"},
		{Content: "two"},
		{Content: "three"},
	}
	if got := JoinPassageContents(passages, "\n"); got != "one\ntwo\nthree" {
		t.Fatalf("joined = %q", got)
	}
	if got := JoinPassageContents(nil, "\n"); got != "" {
		t.Fatalf("empty join = %q", got)
	}
}
