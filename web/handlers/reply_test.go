package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kbreply/agent"
	"kbreply/blueprint"
	"kbreply/knowledge"
	"kbreply/llmclient"
	"kbreply/qualitygate"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text, provider string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, kbID string, vector []float32, topK int) ([]knowledge.Chunk, error) {
	return nil, nil
}

type stubGenerator struct {
	response string
	err      error
}

func (g *stubGenerator) Chat(ctx context.Context, messages []llmclient.Message, temperature *float64) (string, error) {
	return g.response, g.err
}

func newTestRouter(t *testing.T, gen agent.Generator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	retriever := knowledge.NewRetriever(stubEmbedder{}, stubSearcher{}, logger)
	history, err := blueprint.NewHistoryStore(8)
	if err != nil {
		t.Fatal(err)
	}
	selector := blueprint.NewSelector(history, logger)
	cache, err := qualitygate.NewSemanticCache(8)
	if err != nil {
		t.Fatal(err)
	}
	gate := qualitygate.New(stubEmbedder{}, cache, logger)
	replyAgent := agent.New(retriever, selector, gate, gen, logger)

	resolve := func(profileID string) (*agent.Persona, error) {
		if profileID != "" && profileID != "known" {
			return nil, fmt.Errorf("unknown profile %q", profileID)
		}
		return &agent.Persona{Name: "Bot"}, nil
	}
	handler := NewReplyHandler(replyAgent, resolve, logger)

	router := gin.New()
	router.POST("/api/reply", handler.SendReply)
	router.POST("/api/quiz", handler.GenerateQuiz)
	return router
}

func TestSendReply(t *testing.T) {
	router := newTestRouter(t, &stubGenerator{response: "The answer is B."})

	body := `{"thread_id": "t1", "message": "what is mac?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["reply"] != "The answer is B." {
		t.Errorf("reply = %q", resp["reply"])
	}
}

func TestSendReplyMissingFields(t *testing.T) {
	router := newTestRouter(t, &stubGenerator{response: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/api/reply", strings.NewReader(`{"message": "no thread"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendReplyUnknownProfile(t *testing.T) {
	router := newTestRouter(t, &stubGenerator{response: "unused"})

	body := `{"thread_id": "t1", "message": "hi", "profile_id": "nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendReplyGenerationFailure(t *testing.T) {
	router := newTestRouter(t, &stubGenerator{err: fmt.Errorf("backend down")})

	body := `{"thread_id": "t1", "message": "hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestGenerateQuizEndpoint(t *testing.T) {
	quizJSON := `[{"question": "Which model uses labels?", "options": {"A": "DAC", "B": "MAC", "C": "RBAC", "D": "ABAC"}, "correct": "B", "explanation": "Labels."}]`
	router := newTestRouter(t, &stubGenerator{response: quizJSON})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz", strings.NewReader(`{"count": 1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Questions []agent.QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Questions) != 1 || resp.Questions[0].CorrectAnswer != "B" {
		t.Errorf("questions = %+v", resp.Questions)
	}
}
