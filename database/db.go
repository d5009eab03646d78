// Package database provides the Postgres-backed knowledge base store.
// Chunks are stored with pgvector embeddings and searched by L2 distance,
// so lower distance means more similar.
package database

import (
	"context"
	"database/sql"
	"fmt"

	kberrors "kbreply/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type PostgresStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(connStr string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, kberrors.WrapError(err, "open database")
	}
	if err := db.Ping(); err != nil {
		return nil, kberrors.WrapError(err, "ping database")
	}
	logger.Info("Connected to the database")
	return &PostgresStore{DB: db, logger: logger}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
// The embedding column dimension follows the configured embedding model;
// 768 matches the nomic-embed family used by the default provider.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_bases (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            embedding_provider TEXT NOT NULL,
            role TEXT DEFAULT '',
            domain TEXT DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS kb_chunks (
            id UUID PRIMARY KEY,
            kb_id TEXT REFERENCES knowledge_bases(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            embedding vector(768),
            source_file TEXT DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_kb_chunks_kb_id ON kb_chunks(kb_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
