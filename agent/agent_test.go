package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"kbreply/blueprint"
	"kbreply/knowledge"
	"kbreply/llmclient"
	"kbreply/qualitygate"

	"go.uber.org/zap"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text, provider string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubSearcher struct {
	results map[string][]knowledge.Chunk
}

func (s *stubSearcher) Search(ctx context.Context, kbID string, vector []float32, topK int) ([]knowledge.Chunk, error) {
	return s.results[kbID], nil
}

type scriptedGenerator struct {
	responses []string
	calls     int
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Chat(ctx context.Context, messages []llmclient.Message, temperature *float64) (string, error) {
	g.prompts = append(g.prompts, messages[len(messages)-1].Content)
	if g.err != nil {
		return "", g.err
	}
	idx := g.calls
	g.calls++
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	return g.responses[idx], nil
}

func newTestAgent(t *testing.T, gen Generator, searcher knowledge.Searcher) (*ReplyAgent, *blueprint.HistoryStore) {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	retriever := knowledge.NewRetriever(stubEmbedder{}, searcher, logger)

	history, err := blueprint.NewHistoryStore(16)
	if err != nil {
		t.Fatal(err)
	}
	selector := blueprint.NewSelectorWithSeed(history, logger, 7)

	cache, err := qualitygate.NewSemanticCache(16)
	if err != nil {
		t.Fatal(err)
	}
	gate := qualitygate.New(stubEmbedder{}, cache, logger)

	return New(retriever, selector, gate, gen, logger), history
}

func simpleProfile() *blueprint.Profile {
	profiles, err := blueprint.ParseProfiles([]byte(`[
	  {
	    "id": "prep",
	    "domains": [
	      {"id": "access_control", "name": "Access Control", "keywords": ["access control"]},
	      {"id": "crypto", "name": "Cryptography", "keywords": ["encryption"]}
	    ],
	    "question_types": [{"id": "recall", "phrase": "recall question"}],
	    "reasoning_modes": [{"id": "deductive", "name": "Deductive", "description": "from principles"}]
	  }
	]`))
	if err != nil {
		panic(err)
	}
	return profiles["prep"]
}

func TestReplyGenerationErrorSurfaced(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("backend down")}
	a, _ := newTestAgent(t, gen, &stubSearcher{})

	_, err := a.Reply(context.Background(), &Persona{Name: "Bot"}, Request{ThreadID: "t1", Message: "hi"})
	if err == nil {
		t.Fatal("Reply() succeeded, want generation error")
	}
}

func TestReplyCommitsBlueprintOnlyOnSuccess(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("backend down")}
	a, history := newTestAgent(t, gen, &stubSearcher{})
	p := &Persona{Name: "Bot", Profile: simpleProfile()}

	if _, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "hi"}); err == nil {
		t.Fatal("expected generation error")
	}
	if w := history.Window("t1", 10); len(w) != 0 {
		t.Errorf("blueprint committed after failed generation: %v", w)
	}

	gen.err = nil
	gen.responses = []string{"A clean reply."}
	if _, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "hi"}); err != nil {
		t.Fatal(err)
	}
	if w := history.Window("t1", 10); len(w) != 1 {
		t.Errorf("blueprint history length = %d, want 1 after success", len(w))
	}
}

func TestReplyIncludesRetrievedContext(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Chunk{
		"kb1": {{Text: "labels are assigned centrally", Distance: 0.1, KBID: "kb1"}},
	}}
	gen := &scriptedGenerator{responses: []string{"MAC uses labels."}}
	a, _ := newTestAgent(t, gen, searcher)

	p := &Persona{
		Name:      "Bot",
		KBs:       []knowledge.KBDescriptor{{ID: "kb1", Title: "Handbook", Provider: "p"}},
		Retrieval: knowledge.RetrievalConfig{MinSimilarityThreshold: 1.0, MaxChunks: 3},
	}
	got, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "what is mac?"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "MAC uses labels." {
		t.Errorf("Reply() = %q", got)
	}
	if !strings.Contains(gen.prompts[0], "labels are assigned centrally") {
		t.Error("generation prompt missing retrieved chunk")
	}
	if !strings.Contains(gen.prompts[0], "[Source: Handbook]") {
		t.Error("generation prompt missing source attribution")
	}
}

func TestReplyDomainHintReachesConstraint(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"fine"}}
	a, _ := newTestAgent(t, gen, &stubSearcher{})
	p := &Persona{Name: "Bot", Profile: simpleProfile()}

	if _, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "test me on encryption basics"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.prompts[0], "Focus domain: Cryptography") {
		t.Errorf("prompt missing hinted domain constraint:\n%s", gen.prompts[0])
	}
}

func TestReplyRegenerationCarriesCorrective(t *testing.T) {
	searcher := &stubSearcher{}
	gen := &scriptedGenerator{responses: []string{
		"Which model uses labels?\nCorrect: B",
		"Which port does DNS use?\nCorrect: A",
	}}
	a, _ := newTestAgent(t, gen, searcher)

	p := &Persona{
		Name: "Bot",
		Gate: qualitygate.Config{SemanticCheckEnabled: true},
	}

	// First reply seeds the semantic cache.
	if _, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "quiz me"}); err != nil {
		t.Fatal(err)
	}
	// Second draft is identical (stub embedder returns a constant vector),
	// so the gate regenerates once with the corrective instruction.
	gen.responses = []string{
		"Which model uses labels?\nCorrect: B",
		"Which cipher is asymmetric?\nCorrect: C",
	}
	gen.calls = 0
	got, err := a.Reply(context.Background(), p, Request{ThreadID: "t1", Message: "quiz me again"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Which cipher is asymmetric?\nCorrect: C" {
		t.Errorf("Reply() = %q, want the regenerated draft", got)
	}
	if len(gen.prompts) != 3 {
		t.Fatalf("generator calls = %d, want 3 total", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[2], "too similar") {
		t.Error("regeneration prompt missing corrective instruction")
	}
}
