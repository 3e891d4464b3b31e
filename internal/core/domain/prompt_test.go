package domain

import "testing"

func TestValidateSystemPrompt(t *testing.T) {
	if err := ValidateSystemPrompt("answer with {relevantDocs}"); err != nil {
		t.Fatalf("ValidateSystemPrompt() error = %v", err)
	}
	err := ValidateSystemPrompt("no placeholder")
	if !IsKind(err, ErrTemplate) {
		t.Fatalf("expected template error, got %v", err)
	}
}
