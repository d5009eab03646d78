package knowledge

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// RetrieveTwoStage runs the outline-then-body retrieval used for exam-prep
// profiles. Stage A searches the outline KB to scope the topic and extract a
// subtopic phrase; Stage B searches the domain's body-of-knowledge KB with
// the query refined by that phrase. The two stages draw from disjoint KBs,
// so no dedup pass runs here.
//
// The extracted subtopic is returned alongside the chunks so the blueprint
// for this generation can carry it.
func (r *Retriever) RetrieveTwoStage(ctx context.Context, query, domain string, kbs []KBDescriptor, cfg RetrievalConfig) ([]string, string) {
	if len(kbs) == 0 {
		r.logger.Debug("No authorized knowledge bases, denying all knowledge access")
		return nil, ""
	}
	cfg = cfg.withDefaults()

	var outlineKB, cbkKB *KBDescriptor
	for i := range kbs {
		kb := &kbs[i]
		switch {
		case kb.Role == RoleOutline && outlineKB == nil:
			outlineKB = kb
		case kb.Role == RoleCBK && kb.Domain == domain && cbkKB == nil:
			cbkKB = kb
		}
	}

	var formatted []string
	var subtopic string

	if outlineKB != nil {
		outlineChunks := r.searchOne(ctx, query, *outlineKB, outlineTopK, cfg.MinSimilarityThreshold)
		texts := make([]string, 0, len(outlineChunks))
		for _, c := range outlineChunks {
			formatted = append(formatted, formatChunk(c.Text, outlineKB.Title))
			texts = append(texts, c.Text)
		}
		// Each extraction strategy sees every outline chunk before the next
		// strategy runs, so a heading in the second chunk beats a sentence
		// fallback from the first.
		subtopic, _ = r.extractor.ExtractAcross(texts)
	} else {
		r.logger.Warn("Two-stage retrieval without an outline knowledge base",
			zap.String("domain", domain))
	}

	if cbkKB != nil {
		refined := query
		if subtopic != "" {
			refined = query + " " + subtopic
		}
		cbkChunks := r.searchOne(ctx, refined, *cbkKB, cbkTopK, cfg.MinSimilarityThreshold)
		for _, c := range cbkChunks {
			formatted = append(formatted, formatChunk(c.Text, cbkKB.Title))
		}
	} else {
		r.logger.Warn("No body-of-knowledge KB for domain",
			zap.String("domain", domain))
	}

	if len(formatted) == 0 {
		return []string{NoResultsSentinel}, subtopic
	}
	return formatted, subtopic
}

// searchOne embeds the query with the KB's provider and returns its
// threshold-filtered hits. Failures are logged and yield no results.
func (r *Retriever) searchOne(ctx context.Context, query string, kb KBDescriptor, topK int, threshold float64) []Chunk {
	vector, err := r.embedder.Embed(ctx, strings.TrimSpace(query), kb.Provider)
	if err != nil {
		r.logger.Warn("Query embedding failed, skipping knowledge base",
			zap.String("kb_id", kb.ID),
			zap.Error(err))
		return nil
	}
	hits, err := r.searcher.Search(ctx, kb.ID, vector, topK)
	if err != nil {
		r.logger.Warn("Knowledge base search failed, skipping",
			zap.String("kb_id", kb.ID),
			zap.Error(err))
		return nil
	}
	// The hits slice belongs to the Searcher; filter into a fresh one.
	filtered := make([]Chunk, 0, len(hits))
	for _, c := range hits {
		if c.Distance <= threshold {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
