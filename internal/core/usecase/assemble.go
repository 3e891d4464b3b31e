package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ikolomin/siterag/internal/core/domain"
)

const contextMessageTemplate = "Use this context to answer the following question\n<context>\n%s\n</context>"

// RenderSystemPrompt substitutes the current turn's passage text into the
// template. A template without the placeholder is returned unchanged; its
// presence is validated when configuration is loaded.
func RenderSystemPrompt(template, passagesText string) string {
	return strings.Replace(template, domain.RelevantDocsPlaceholder, passagesText, 1)
}

// AssemblePrompt merges the rendered system prompt, the conversation history
// and memoized groundings from earlier turns into the message sequence sent
// to the model.
//
// A single-message history needs no injected context: the current passages
// already ground it through the system prompt. For longer histories, every
// user message except the last gets the grounding recorded for turn index
// position+1 injected immediately before it; a missing record is logged and
// skipped so the conversation stays usable. Original messages keep their
// relative order; nothing is reordered or dropped.
func AssemblePrompt(
	history []domain.Message,
	renderedSystemPrompt string,
	priorGroundings []domain.TurnGrounding,
	logger *slog.Logger,
) []domain.Message {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]domain.Message, 0, len(history)*2+1)
	out = append(out, domain.Message{Role: domain.RoleSystem, Content: renderedSystemPrompt})

	if len(history) == 1 {
		return append(out, history[0])
	}

	for idx, message := range history {
		if message.Role == domain.RoleUser && idx < len(history)-1 {
			if grounding, ok := groundingForTurn(priorGroundings, idx+1); ok {
				out = append(out, domain.Message{
					Role:    domain.RoleUser,
					Content: fmt.Sprintf(contextMessageTemplate, grounding.PassagesText),
				})
			} else {
				logger.Warn("no grounding recorded for turn",
					"turn_index", idx+1,
					"recorded_turns", len(priorGroundings),
				)
			}
		}
		out = append(out, message)
	}

	return out
}

// groundingCoverage counts how many non-final user messages have a memoized
// grounding record, matching exactly what AssemblePrompt will inject or skip.
func groundingCoverage(history []domain.Message, groundings []domain.TurnGrounding) (injected, missed int) {
	if len(history) <= 1 {
		return 0, 0
	}
	for idx, message := range history[:len(history)-1] {
		if message.Role != domain.RoleUser {
			continue
		}
		if _, ok := groundingForTurn(groundings, idx+1); ok {
			injected++
		} else {
			missed++
		}
	}
	return injected, missed
}

func groundingForTurn(groundings []domain.TurnGrounding, turnIndex int) (domain.TurnGrounding, bool) {
	for _, g := range groundings {
		if g.TurnIndex == turnIndex {
			return g, true
		}
	}
	return domain.TurnGrounding{}, false
}
