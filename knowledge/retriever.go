package knowledge

import (
	"context"
	"fmt"
	"sort"

	"kbreply/similarity"

	"go.uber.org/zap"
)

// Retriever searches the caller's authorized knowledge bases and assembles
// an attributed context block. Authorization is the caller's problem:
// whatever set of descriptors arrives is searched exactly, and an empty set
// yields an empty result (implicit deny, no fallback to "all knowledge").
type Retriever struct {
	embedder  Embedder
	searcher  Searcher
	extractor ExtractorChain
	logger    *zap.Logger
}

func NewRetriever(embedder Embedder, searcher Searcher, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		extractor: DefaultExtractorChain(),
		logger:    logger,
	}
}

// Retrieve runs standard-mode retrieval: one embedding per distinct provider,
// every KB in the provider's group searched with it, results merged into one
// globally distance-ranked list, threshold-filtered, deduplicated, and
// formatted with source attribution.
//
// Collaborator failures for one provider are logged and that group's
// contribution omitted; Retrieve never fails the whole request.
func (r *Retriever) Retrieve(ctx context.Context, query string, kbs []KBDescriptor, cfg RetrievalConfig) []string {
	if len(kbs) == 0 {
		r.logger.Debug("No authorized knowledge bases, denying all knowledge access")
		return nil
	}
	cfg = cfg.withDefaults()

	titles := make(map[string]string, len(kbs))
	for _, kb := range kbs {
		titles[kb.ID] = kb.Title
	}

	merged := r.searchByProvider(ctx, query, kbs, cfg.TopK)
	if len(merged) == 0 {
		return nil
	}

	// Global ranking is cross-KB: sort the merged list, not per-KB top-k.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	filtered := merged[:0]
	for _, c := range merged {
		if c.Distance <= cfg.MinSimilarityThreshold {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return []string{NoResultsSentinel}
	}

	selected := dedupeByOverlap(filtered, cfg.OverlapThreshold, cfg.MaxChunks)

	formatted := make([]string, 0, len(selected))
	for _, c := range selected {
		formatted = append(formatted, formatChunk(c.Text, titles[c.KBID]))
	}
	return formatted
}

// searchByProvider groups KBs by embedding provider, computes one query
// embedding per group, and searches every KB in the group with it.
func (r *Retriever) searchByProvider(ctx context.Context, query string, kbs []KBDescriptor, topK int) []Chunk {
	groups := make(map[string][]KBDescriptor)
	var providerOrder []string
	for _, kb := range kbs {
		if _, seen := groups[kb.Provider]; !seen {
			providerOrder = append(providerOrder, kb.Provider)
		}
		groups[kb.Provider] = append(groups[kb.Provider], kb)
	}

	var merged []Chunk
	for _, provider := range providerOrder {
		vector, err := r.embedder.Embed(ctx, query, provider)
		if err != nil {
			r.logger.Warn("Query embedding failed, skipping provider group",
				zap.String("provider", provider),
				zap.Error(err))
			continue
		}
		for _, kb := range groups[provider] {
			hits, err := r.searcher.Search(ctx, kb.ID, vector, topK)
			if err != nil {
				r.logger.Warn("Knowledge base search failed, skipping",
					zap.String("kb_id", kb.ID),
					zap.Error(err))
				continue
			}
			merged = append(merged, hits...)
		}
	}
	return merged
}

// dedupeByOverlap walks candidates in ranked order and drops any chunk whose
// Jaccard token overlap with an already-accepted chunk exceeds the threshold.
func dedupeByOverlap(candidates []Chunk, overlapThreshold float64, maxChunks int) []Chunk {
	var selected []Chunk
	var selectedTexts []string

	for _, c := range candidates {
		isDuplicate := false
		for _, prev := range selectedTexts {
			if similarity.Jaccard(c.Text, prev) > overlapThreshold {
				isDuplicate = true
				break
			}
		}
		if isDuplicate {
			continue
		}
		selected = append(selected, c)
		selectedTexts = append(selectedTexts, c.Text)
		if len(selected) >= maxChunks {
			break
		}
	}
	return selected
}

func formatChunk(text, title string) string {
	if title == "" {
		title = "Unknown Source"
	}
	return fmt.Sprintf("%s\n[Source: %s]", text, title)
}
