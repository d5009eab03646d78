package agent

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateQuizParsesJSON(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"Here you go:\n[{\"question\": \"Which model uses labels?\", \"options\": {\"A\": \"DAC\", \"B\": \"MAC\", \"C\": \"RBAC\", \"D\": \"ABAC\"}, \"correct\": \"B\", \"explanation\": \"MAC uses centrally assigned labels.\"}]",
	}}
	a, _ := newTestAgent(t, gen, &stubSearcher{})

	questions, err := a.GenerateQuiz(context.Background(), &Persona{Name: "Bot"}, 1)
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(questions))
	}
	q := questions[0]
	if q.QuestionID == "" {
		t.Error("question missing generated id")
	}
	if q.QuestionText != "Which model uses labels?" || q.CorrectAnswer != "B" {
		t.Errorf("parsed question = %+v", q)
	}
	if len(q.Options) != 4 {
		t.Errorf("options = %v, want 4 entries", q.Options)
	}
	if q.Explanation != "MAC uses centrally assigned labels." {
		t.Errorf("explanation = %q", q.Explanation)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], `"explanation"`) {
		t.Error("quiz instruction does not request an explanation field")
	}
}

func TestGenerateQuizFallbackOnMalformedJSON(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I cannot produce JSON today."}}
	a, _ := newTestAgent(t, gen, &stubSearcher{})

	questions, err := a.GenerateQuiz(context.Background(), &Persona{Name: "Bot"}, 3)
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want single fallback", len(questions))
	}
	if questions[0].QuestionText != "Unable to generate questions at this time." {
		t.Errorf("fallback question = %+v", questions[0])
	}
}

func TestGenerateQuizGenerationError(t *testing.T) {
	gen := &scriptedGenerator{err: context.DeadlineExceeded}
	a, _ := newTestAgent(t, gen, &stubSearcher{})

	if _, err := a.GenerateQuiz(context.Background(), &Persona{Name: "Bot"}, 2); err == nil {
		t.Error("GenerateQuiz() succeeded, want error from generator")
	}
}
