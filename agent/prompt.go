package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"kbreply/llmclient"
	"kbreply/prompts"
)

// Rough chars-per-token estimate used for history budgeting. Close enough
// for budget enforcement without shipping a tokenizer.
const charsPerToken = 4

const defaultHistoryTokenBudget = 1000

// BuildPrompt assembles the generation prompt. Section order matters:
// identity and instructions anchor behavior before the knowledge block so
// retrieved text supports them without overriding them; history comes late
// so stale turns cannot crowd out the current question.
func BuildPrompt(p *Persona, constraint string, kbChunks []string, history []llmclient.Message, message, corrective string) string {
	var b strings.Builder

	if p.Name != "" {
		fmt.Fprintf(&b, "AGENT IDENTITY:\n---\nYou are %s, an AI assistant.\n", p.Name)
	}

	instructions := p.Instructions
	if instructions == "" {
		instructions = prompts.AgentSystem()
	}
	fmt.Fprintf(&b, "\nAGENT INSTRUCTIONS:\n---\n%s\n", strings.TrimSpace(instructions))

	if constraint != "" {
		fmt.Fprintf(&b, "\n%s\n", constraint)
	}

	if p.Formatting != "" {
		fmt.Fprintf(&b, "\nFORMATTING RULES:\n---\n%s\n", p.Formatting)
	}

	if len(kbChunks) > 0 {
		fmt.Fprintf(&b, "\nKNOWLEDGE BASE INFORMATION:\n---\n%s\n", strings.Join(kbChunks, "\n"))
	}

	budget := p.HistoryTokenBudget
	if budget <= 0 {
		budget = defaultHistoryTokenBudget
	}
	if truncated := TruncateHistoryByTokens(history, budget); len(truncated) > 0 {
		var lines []string
		for _, m := range truncated {
			lines = append(lines, formatHistoryLine(m))
		}
		fmt.Fprintf(&b, "\nCONVERSATION HISTORY:\n---\n%s\n", strings.Join(lines, "\n"))
	}

	fmt.Fprintf(&b, "\nCURRENT MESSAGE:\n---\n%s\n", message)

	if corrective != "" {
		fmt.Fprintf(&b, "\n%s\n", corrective)
	}

	b.WriteString("\nReply:\n")
	return b.String()
}

func formatHistoryLine(m llmclient.Message) string {
	role := "Assistant"
	if m.Role == "user" {
		role = "User"
	}
	return fmt.Sprintf("%s: %s", role, m.Content)
}

// TruncateHistoryByTokens keeps the most recent messages that fit the
// budget, preserving chronological order. When even the newest message is
// over budget on its own, it is kept truncated with a marker so the model
// still sees the most recent turn.
func TruncateHistoryByTokens(history []llmclient.Message, maxTokens int) []llmclient.Message {
	if len(history) == 0 || maxTokens <= 0 {
		return nil
	}

	var selected []llmclient.Message
	currentTokens := 0

	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		tokens := len(formatHistoryLine(m)) / charsPerToken
		if currentTokens+tokens > maxTokens {
			if len(selected) == 0 {
				charLimit := maxTokens * charsPerToken
				if charLimit > len(m.Content) {
					charLimit = len(m.Content)
				}
				// Back off to a rune boundary so the cut never splits a
				// multi-byte character.
				for charLimit > 0 && charLimit < len(m.Content) && !utf8.RuneStart(m.Content[charLimit]) {
					charLimit--
				}
				m.Content = m.Content[:charLimit] + "... [truncated]"
				selected = append(selected, m)
			}
			break
		}
		selected = append(selected, m)
		currentTokens += tokens
	}

	// Restore chronological order.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}
