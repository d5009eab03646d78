package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	kberrors "kbreply/errors"
	"kbreply/knowledge"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// UpsertKnowledgeBase registers a knowledge base or updates its metadata.
func (s *PostgresStore) UpsertKnowledgeBase(ctx context.Context, kb knowledge.KBDescriptor) error {
	query := `
        INSERT INTO knowledge_bases (id, title, embedding_provider, role, domain)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id)
        DO UPDATE SET title = EXCLUDED.title, embedding_provider = EXCLUDED.embedding_provider,
                      role = EXCLUDED.role, domain = EXCLUDED.domain
    `
	if _, err := s.DB.ExecContext(ctx, query, kb.ID, kb.Title, kb.Provider, kb.Role, kb.Domain); err != nil {
		return kberrors.WrapErrorf(err, "upsert knowledge base %s", kb.ID)
	}
	return nil
}

// ListKnowledgeBases returns the descriptors of every registered knowledge base.
func (s *PostgresStore) ListKnowledgeBases(ctx context.Context) ([]knowledge.KBDescriptor, error) {
	const query = `SELECT id, title, embedding_provider, role, domain FROM knowledge_bases ORDER BY id`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, kberrors.WrapError(err, "list knowledge bases")
	}
	defer rows.Close()

	var kbs []knowledge.KBDescriptor
	for rows.Next() {
		var kb knowledge.KBDescriptor
		if err := rows.Scan(&kb.ID, &kb.Title, &kb.Provider, &kb.Role, &kb.Domain); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base row: %w", err)
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

// GetKnowledgeBase fetches one descriptor by id.
func (s *PostgresStore) GetKnowledgeBase(ctx context.Context, id string) (knowledge.KBDescriptor, error) {
	const query = `SELECT id, title, embedding_provider, role, domain FROM knowledge_bases WHERE id = $1`

	var kb knowledge.KBDescriptor
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&kb.ID, &kb.Title, &kb.Provider, &kb.Role, &kb.Domain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return knowledge.KBDescriptor{}, kberrors.WrapErrorf(kberrors.ErrNotFound, "knowledge base %s", id)
		}
		return knowledge.KBDescriptor{}, kberrors.WrapErrorf(err, "fetch knowledge base %s", id)
	}
	return kb, nil
}

// InsertChunk stores one embedded chunk in a knowledge base.
func (s *PostgresStore) InsertChunk(ctx context.Context, kbID, content, sourceFile string, embedding []float32) error {
	query := `
        INSERT INTO kb_chunks (id, kb_id, content, embedding, source_file)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := s.DB.ExecContext(ctx, query, uuid.New(), kbID, content, pgvector.NewVector(embedding), sourceFile)
	if err != nil {
		return kberrors.WrapErrorf(err, "insert chunk into %s", kbID)
	}
	return nil
}

// Search returns the topK nearest chunks in one knowledge base by L2 distance.
// Implements knowledge.Searcher.
func (s *PostgresStore) Search(ctx context.Context, kbID string, vector []float32, topK int) ([]knowledge.Chunk, error) {
	query := `
        SELECT content, embedding <-> $1 AS distance
        FROM kb_chunks
        WHERE kb_id = $2
        ORDER BY embedding <-> $1
        LIMIT $3
    `
	rows, err := s.DB.QueryContext(ctx, query, pgvector.NewVector(vector), kbID, topK)
	if err != nil {
		return nil, kberrors.WrapErrorf(err, "search knowledge base %s", kbID)
	}
	defer rows.Close()

	var chunks []knowledge.Chunk
	for rows.Next() {
		c := knowledge.Chunk{KBID: kbID}
		if err := rows.Scan(&c.Text, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteKnowledgeBase removes a knowledge base and its chunks.
func (s *PostgresStore) DeleteKnowledgeBase(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id); err != nil {
		return kberrors.WrapErrorf(err, "delete knowledge base %s", id)
	}
	return nil
}
