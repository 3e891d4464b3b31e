package domain

import (
	"fmt"
	"strings"
)

// RelevantDocsPlaceholder is the literal a system prompt template must
// contain for passage substitution.
const RelevantDocsPlaceholder = "{relevantDocs}"

// ValidateSystemPrompt is the save-time check for the template; it rejects
// templates the assembler could never ground.
func ValidateSystemPrompt(template string) error {
	if !strings.Contains(template, RelevantDocsPlaceholder) {
		return WrapError(ErrTemplate, "validate system prompt",
			fmt.Errorf("template does not contain %s", RelevantDocsPlaceholder))
	}
	return nil
}
