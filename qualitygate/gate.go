package qualitygate

import (
	"context"

	"kbreply/similarity"

	"go.uber.org/zap"
)

// Embedder computes embeddings for question signatures.
type Embedder interface {
	Embed(ctx context.Context, text string, provider string) ([]float32, error)
}

// RegenerateFunc asks the orchestrator for a fresh draft. The corrective
// instruction is appended to the generation prompt when non-empty.
type RegenerateFunc func(ctx context.Context, correctiveInstruction string) (string, error)

// Config carries the per-agent gate settings.
type Config struct {
	Rules                       Rules
	SemanticCheckEnabled        bool
	SemanticSimilarityThreshold float64 // default 0.90
	SemanticHistoryDepth        int     // default 5
	EmbeddingProvider           string
	CorrectiveInstruction       string
}

const (
	defaultSemanticThreshold   = 0.90
	defaultSemanticDepth       = 5
	defaultCorrectiveDirective = "Your previous draft was too similar to an earlier reply in this conversation. Produce a substantially different question or answer."
)

func (c Config) withDefaults() Config {
	if c.SemanticSimilarityThreshold <= 0 {
		c.SemanticSimilarityThreshold = defaultSemanticThreshold
	}
	if c.SemanticHistoryDepth <= 0 {
		c.SemanticHistoryDepth = defaultSemanticDepth
	}
	if c.CorrectiveInstruction == "" {
		c.CorrectiveInstruction = defaultCorrectiveDirective
	}
	return c
}

type checkStatus int

const (
	statusPending checkStatus = iota
	statusRetried
	statusAccepted
)

// checkState enforces the single-retry invariant structurally: tryRetry
// succeeds only from pending, so a second regeneration within one check is
// unrepresentable in the control flow.
type checkState struct {
	status checkStatus
}

func (s *checkState) tryRetry() bool {
	if s.status != statusPending {
		return false
	}
	s.status = statusRetried
	return true
}

func (s *checkState) accept() checkStatus {
	final := s.status
	s.status = statusAccepted
	return final
}

// Gate runs the repetition and validation checks for one agent.
type Gate struct {
	embedder Embedder
	cache    *SemanticCache
	logger   *zap.Logger
}

func New(embedder Embedder, cache *SemanticCache, logger *zap.Logger) *Gate {
	return &Gate{embedder: embedder, cache: cache, logger: logger}
}

// Process runs validation, the phrase check, and the semantic check in
// order, each stage operating on the previous stage's output. Every check
// may call regen at most once; a failed regeneration is swallowed and the
// pre-retry text kept, so the caller always receives some answer. The bool
// reports whether the final text satisfies the validation rule.
func (g *Gate) Process(ctx context.Context, threadID, draft, previousReply string, cfg Config, regen RegenerateFunc) (string, bool) {
	cfg = cfg.withDefaults()

	text, valid := g.runValidation(ctx, draft, cfg, regen)
	text = g.runPhraseCheck(ctx, text, previousReply, cfg, regen)
	text = g.runSemanticCheck(ctx, threadID, text, cfg, regen)

	if cfg.Rules.Validation != "" {
		_, valid = Validate(text, cfg.Rules.Validation)
	}
	return text, valid
}

// runValidation post-processes the draft and, when the validation rule
// fails, regenerates once and accepts the second attempt regardless.
func (g *Gate) runValidation(ctx context.Context, draft string, cfg Config, regen RegenerateFunc) (string, bool) {
	var state checkState

	text, valid := PostProcess(draft, cfg.Rules)
	if !valid && state.tryRetry() {
		g.logger.Debug("Validation failed, regenerating once",
			zap.String("rule", cfg.Rules.Validation))
		retry, err := regen(ctx, "")
		if err != nil {
			g.logger.Warn("Validation retry failed, keeping original draft", zap.Error(err))
		} else {
			text, valid = PostProcess(retry, cfg.Rules)
		}
	}
	if state.accept() == statusRetried {
		g.logger.Debug("Validation check used its retry", zap.Bool("valid", valid))
	}
	return text, valid
}

// runPhraseCheck compares the draft's signature with the previous reply's
// and regenerates once on a repeat. The new attempt is not re-checked.
func (g *Gate) runPhraseCheck(ctx context.Context, text, previousReply string, cfg Config, regen RegenerateFunc) string {
	if previousReply == "" {
		return text
	}
	var state checkState

	draftSig := ExtractResponseSignature(text)
	prevSig := ExtractResponseSignature(previousReply)
	if draftSig.Matches(prevSig) && state.tryRetry() {
		g.logger.Debug("Phrase-level repetition detected, regenerating once",
			zap.String("role_pattern", draftSig.RolePattern),
			zap.String("structure_pattern", draftSig.StructurePattern))
		retry, err := regen(ctx, "")
		if err != nil {
			g.logger.Warn("Phrase retry failed, keeping original draft", zap.Error(err))
		} else {
			text, _ = PostProcess(retry, cfg.Rules)
		}
	}
	state.accept()
	return text
}

// runSemanticCheck embeds the draft's question signature and compares it
// against the thread's cached reply embeddings. Missing signatures and
// embedding failures skip the check (fail-open). The final embedding is
// always appended to the cache and the cache trimmed to depth.
func (g *Gate) runSemanticCheck(ctx context.Context, threadID, text string, cfg Config, regen RegenerateFunc) string {
	if !cfg.SemanticCheckEnabled {
		return text
	}
	var state checkState

	signature, ok := ExtractQuestionSignature(text)
	if !ok {
		return text
	}
	embedding, err := g.embedder.Embed(ctx, signature, cfg.EmbeddingProvider)
	if err != nil {
		g.logger.Warn("Signature embedding failed, skipping semantic check", zap.Error(err))
		return text
	}

	repeat, maxSim := g.checkSemanticRepetition(threadID, embedding, cfg.SemanticSimilarityThreshold)
	if repeat && state.tryRetry() {
		g.logger.Debug("Semantic repetition detected, regenerating once",
			zap.Float64("max_similarity", maxSim))
		retry, err := regen(ctx, cfg.CorrectiveInstruction)
		if err != nil {
			g.logger.Warn("Semantic retry failed, keeping original draft", zap.Error(err))
		} else {
			text, _ = PostProcess(retry, cfg.Rules)
			if newSig, ok := ExtractQuestionSignature(text); ok {
				if newEmb, err := g.embedder.Embed(ctx, newSig, cfg.EmbeddingProvider); err == nil {
					embedding = newEmb
				} else {
					g.logger.Warn("Re-embedding retry signature failed", zap.Error(err))
				}
			}
		}
	}
	state.accept()

	g.cache.Append(threadID, embedding, cfg.SemanticHistoryDepth)
	return text
}

// checkSemanticRepetition reports whether the embedding exceeds the
// similarity threshold against any cached embedding for the thread, along
// with the maximum similarity seen.
func (g *Gate) checkSemanticRepetition(threadID string, embedding []float32, threshold float64) (bool, float64) {
	maxSim := -1.0
	for _, entry := range g.cache.Entries(threadID) {
		if sim := similarity.Cosine(embedding, entry.Embedding); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim > threshold, maxSim
}
