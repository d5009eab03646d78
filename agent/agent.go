// Package agent orchestrates one reply: blueprint selection, knowledge
// retrieval, prompt assembly, generation, and the quality gate. The
// blueprint is committed to rotation history only after the reply survives
// the gate, so failed generations never bias future draws.
package agent

import (
	"context"

	"kbreply/blueprint"
	kberrors "kbreply/errors"
	"kbreply/knowledge"
	"kbreply/llmclient"
	"kbreply/qualitygate"

	"go.uber.org/zap"
)

// Generator produces text from chat messages.
type Generator interface {
	Chat(ctx context.Context, messages []llmclient.Message, temperature *float64) (string, error)
}

// Persona is the full configuration of one reply agent.
type Persona struct {
	Name               string
	Instructions       string
	Formatting         string
	KBs                []knowledge.KBDescriptor
	Retrieval          knowledge.RetrievalConfig
	Profile            *blueprint.Profile // nil disables blueprint rotation
	HistoryDepth       int
	HistoryTokenBudget int
	Gate               qualitygate.Config
	Temperature        *float64
}

// Request is one incoming message on a conversation thread.
type Request struct {
	ThreadID string
	Message  string
	History  []llmclient.Message
}

type ReplyAgent struct {
	retriever *knowledge.Retriever
	selector  *blueprint.Selector
	gate      *qualitygate.Gate
	generator Generator
	logger    *zap.Logger
}

func New(retriever *knowledge.Retriever, selector *blueprint.Selector, gate *qualitygate.Gate, generator Generator, logger *zap.Logger) *ReplyAgent {
	return &ReplyAgent{
		retriever: retriever,
		selector:  selector,
		gate:      gate,
		generator: generator,
		logger:    logger,
	}
}

const defaultHistoryDepth = 5

// Reply runs the full pipeline for one request. Generation failure is the
// only error surfaced; retrieval problems degrade to context-free
// generation and gate retry failures fall back to the pre-retry draft.
func (a *ReplyAgent) Reply(ctx context.Context, p *Persona, req Request) (string, error) {
	depth := p.HistoryDepth
	if depth <= 0 {
		depth = defaultHistoryDepth
	}

	var bp blueprint.Blueprint
	if p.Profile != nil {
		bp = a.selector.Select(req.ThreadID, req.Message, p.Profile, depth)
	}

	var chunks []string
	if p.Profile != nil && p.Profile.TwoStageRetrieval {
		var subtopic string
		chunks, subtopic = a.retriever.RetrieveTwoStage(ctx, req.Message, bp.Domain, p.KBs, p.Retrieval)
		bp.Subtopic = subtopic
	} else {
		chunks = a.retriever.Retrieve(ctx, req.Message, p.KBs, p.Retrieval)
	}

	constraint := ""
	if p.Profile != nil {
		constraint = blueprint.ConstraintText(p.Profile, bp)
	}

	prompt := BuildPrompt(p, constraint, chunks, req.History, req.Message, "")
	draft, err := a.generate(ctx, p, prompt)
	if err != nil {
		return "", kberrors.WrapError(err, "generate reply")
	}

	regen := func(ctx context.Context, corrective string) (string, error) {
		retryPrompt := BuildPrompt(p, constraint, chunks, req.History, req.Message, corrective)
		return a.generate(ctx, p, retryPrompt)
	}

	previous := lastAssistantMessage(req.History)
	final, valid := a.gate.Process(ctx, req.ThreadID, draft, previous, p.Gate, regen)
	if !valid {
		a.logger.Warn("Reply failed validation after retry, returning anyway",
			zap.String("thread_id", req.ThreadID),
			zap.String("rule", p.Gate.Rules.Validation))
	}

	if p.Profile != nil {
		a.selector.Commit(req.ThreadID, bp, depth)
	}
	return final, nil
}

func (a *ReplyAgent) generate(ctx context.Context, p *Persona, prompt string) (string, error) {
	return a.generator.Chat(ctx, []llmclient.Message{
		{Role: "user", Content: prompt},
	}, p.Temperature)
}

func lastAssistantMessage(history []llmclient.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return history[i].Content
		}
	}
	return ""
}
