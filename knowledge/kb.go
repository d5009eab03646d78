// Package knowledge implements retrieval and ranking over a set of
// pre-authorized knowledge bases: provider-grouped vector search, global
// distance ranking, threshold filtering, near-duplicate removal, and
// source attribution.
package knowledge

import "context"

// KB roles for two-stage retrieval. An outline KB scopes the topic; a cbk
// KB holds the domain body of knowledge.
const (
	RoleOutline = "outline"
	RoleCBK     = "cbk"
)

// Sentinel returned when retrieval searched but nothing met the similarity
// threshold. Downstream prompt assembly must be able to tell "searched and
// found nothing" apart from "did not search" (empty result).
const NoResultsSentinel = "No relevant knowledge base information found for this query."

// Chunk is one search hit from a knowledge base. Distance is a non-negative
// dissimilarity score from the vector index; lower means more similar.
type Chunk struct {
	Text     string
	Distance float64
	KBID     string
}

// KBDescriptor describes one knowledge base an agent is authorized to search.
type KBDescriptor struct {
	ID       string
	Title    string
	Provider string // embedding provider the KB was indexed with
	Role     string // RoleOutline, RoleCBK, or "" for standard KBs
	Domain   string // domain tag for cbk KBs, "" otherwise
}

// RetrievalConfig carries the per-agent retrieval settings.
type RetrievalConfig struct {
	MinSimilarityThreshold float64
	MaxChunks              int
	OverlapThreshold       float64
	TopK                   int
}

const (
	defaultOverlapThreshold = 0.7
	defaultTopK             = 3
	outlineTopK             = 2
	cbkTopK                 = 4
)

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = defaultOverlapThreshold
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.MaxChunks < 1 {
		c.MaxChunks = 1
	}
	return c
}

// Embedder computes a query embedding with the named provider's model.
type Embedder interface {
	Embed(ctx context.Context, text string, provider string) ([]float32, error)
}

// Searcher runs a vector search within a single knowledge base.
type Searcher interface {
	Search(ctx context.Context, kbID string, vector []float32, topK int) ([]Chunk, error)
}
