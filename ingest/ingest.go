// Package ingest loads source documents into a knowledge base: text
// extraction, overlapping chunking, embedding, and storage.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kbreply/knowledge"

	"go.uber.org/zap"
)

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	UpsertKnowledgeBase(ctx context.Context, kb knowledge.KBDescriptor) error
	InsertChunk(ctx context.Context, kbID, content, sourceFile string, embedding []float32) error
}

// Options controls chunk sizing. Sizes are in characters; overlap must stay
// below the chunk size or chunking cannot advance.
type Options struct {
	ChunkChars   int
	OverlapChars int
}

func (o Options) withDefaults() Options {
	if o.ChunkChars <= 0 {
		o.ChunkChars = 3200
	}
	if o.OverlapChars < 0 || o.OverlapChars >= o.ChunkChars {
		o.OverlapChars = o.ChunkChars / 4
	}
	return o
}

// Ingester embeds document chunks and writes them to the store.
type Ingester struct {
	embedder knowledge.Embedder
	store    ChunkStore
	logger   *zap.Logger
}

func NewIngester(embedder knowledge.Embedder, store ChunkStore, logger *zap.Logger) *Ingester {
	return &Ingester{embedder: embedder, store: store, logger: logger}
}

// IngestFile extracts text from the file, chunks it, embeds each chunk with
// the knowledge base's provider, and stores the results. Supported formats
// are PDF and plain text (by extension).
func (i *Ingester) IngestFile(ctx context.Context, kb knowledge.KBDescriptor, path string, opts Options) (int, error) {
	opts = opts.withDefaults()

	var text string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = ExtractPDFText(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return 0, fmt.Errorf("extract text from %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("no text content in %s", path)
	}

	if err := i.store.UpsertKnowledgeBase(ctx, kb); err != nil {
		return 0, err
	}

	chunks := ChunkText(text, opts)
	i.logger.Info("Ingesting document",
		zap.String("kb_id", kb.ID),
		zap.String("file", filepath.Base(path)),
		zap.Int("chunks", len(chunks)))

	stored := 0
	for idx, chunk := range chunks {
		embedding, err := i.embedder.Embed(ctx, chunk, kb.Provider)
		if err != nil {
			return stored, fmt.Errorf("embed chunk %d: %w", idx, err)
		}
		if err := i.store.InsertChunk(ctx, kb.ID, chunk, filepath.Base(path), embedding); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// ChunkText splits text into overlapping chunks, breaking on whitespace near
// the boundary so words are not split mid-token.
func ChunkText(text string, opts Options) []string {
	opts = opts.withDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.ChunkChars {
		return []string{text}
	}

	step := opts.ChunkChars - opts.OverlapChars
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + opts.ChunkChars
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		// Back up to the nearest whitespace so the boundary lands between
		// words. Give up after a short scan for pathological unbroken text.
		cut := end
		for cut > start && end-cut < 200 && !isSpace(text[cut]) {
			cut--
		}
		if cut == start || end-cut >= 200 {
			cut = end
		}
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		// Advance from the actual cut so text between the cut and a fixed
		// stride is never skipped.
		next := cut - opts.OverlapChars
		if next <= start {
			next = start + step
		}
		start = next
	}
	return chunks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
