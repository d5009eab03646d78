package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"kbreply/llmclient"
)

func TestBuildPromptSectionOrder(t *testing.T) {
	p := &Persona{
		Name:         "StudyBot",
		Instructions: "Tutor the learner.",
		Formatting:   "Plain text only.",
	}
	history := []llmclient.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	prompt := BuildPrompt(p, "Question style: scenario", []string{"chunk one\n[Source: KB]"}, history, "current question", "")

	sections := []string{
		"AGENT IDENTITY:",
		"AGENT INSTRUCTIONS:",
		"Question style: scenario",
		"FORMATTING RULES:",
		"KNOWLEDGE BASE INFORMATION:",
		"CONVERSATION HISTORY:",
		"CURRENT MESSAGE:",
		"Reply:",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		if idx == -1 {
			t.Fatalf("prompt missing section %q", s)
		}
		if idx < last {
			t.Errorf("section %q out of order", s)
		}
		last = idx
	}
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	p := &Persona{Name: "Bot"}
	prompt := BuildPrompt(p, "", nil, nil, "hello", "")

	for _, absent := range []string{"FORMATTING RULES:", "KNOWLEDGE BASE INFORMATION:", "CONVERSATION HISTORY:"} {
		if strings.Contains(prompt, absent) {
			t.Errorf("prompt contains %q for an empty section", absent)
		}
	}
	// Default instructions kick in when the persona has none.
	if !strings.Contains(prompt, "AGENT INSTRUCTIONS:") {
		t.Error("prompt missing default instructions")
	}
}

func TestBuildPromptAppendsCorrective(t *testing.T) {
	p := &Persona{Name: "Bot"}
	prompt := BuildPrompt(p, "", nil, nil, "hello", "Do something different.")
	if !strings.Contains(prompt, "Do something different.") {
		t.Error("prompt missing corrective instruction")
	}
}

func TestTruncateHistoryByTokens(t *testing.T) {
	long := strings.Repeat("x", 400) // ~100 tokens formatted
	history := []llmclient.Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: long},
	}

	// Budget fits roughly two messages.
	got := TruncateHistoryByTokens(history, 210)
	if len(got) != 2 {
		t.Fatalf("kept %d messages, want 2", len(got))
	}
	// Chronological order preserved, newest messages kept.
	if got[0].Role != "assistant" || got[1].Role != "user" {
		t.Errorf("kept roles = %s, %s, want assistant then user", got[0].Role, got[1].Role)
	}
}

func TestTruncateHistorySingleOversizedMessage(t *testing.T) {
	history := []llmclient.Message{
		{Role: "user", Content: strings.Repeat("y", 2000)},
	}
	got := TruncateHistoryByTokens(history, 100)
	if len(got) != 1 {
		t.Fatalf("kept %d messages, want 1", len(got))
	}
	if !strings.HasSuffix(got[0].Content, "... [truncated]") {
		t.Error("oversized message missing truncation marker")
	}
	if len(got[0].Content) > 100*charsPerToken+len("... [truncated]") {
		t.Errorf("truncated content too long: %d chars", len(got[0].Content))
	}
}

func TestTruncateHistoryCutsOnRuneBoundary(t *testing.T) {
	// Cyrillic runes are 2 bytes, so a plain byte-count cut lands mid-rune.
	history := []llmclient.Message{
		{Role: "user", Content: strings.Repeat("доступ ", 200)},
	}
	got := TruncateHistoryByTokens(history, 50)
	if len(got) != 1 {
		t.Fatalf("kept %d messages, want 1", len(got))
	}
	content := strings.TrimSuffix(got[0].Content, "... [truncated]")
	if content == got[0].Content {
		t.Fatal("oversized message missing truncation marker")
	}
	if !utf8.ValidString(content) {
		t.Errorf("truncation split a rune: %q", content[len(content)-6:])
	}
}

func TestTruncateHistoryEmpty(t *testing.T) {
	if got := TruncateHistoryByTokens(nil, 100); got != nil {
		t.Errorf("TruncateHistoryByTokens(nil) = %v, want nil", got)
	}
}
