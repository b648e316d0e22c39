package store

import (
	"context"
	"fmt"
)

// schemaStatements create the tables this service reads and writes. Schema
// migrations proper are handled outside this module; EnsureSchema exists so
// fresh environments and tests can bootstrap without a migration runner.
// Statements are idempotent and ordered by foreign-key dependency.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		email      VARCHAR(255) NOT NULL UNIQUE,
		role       VARCHAR(16)  NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS encryption_keys (
		id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		symmetric_key BYTEA       NOT NULL,
		is_active     BOOLEAN     NOT NULL DEFAULT false,
		expired_at    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_id        BIGINT NOT NULL REFERENCES users(id) ON UPDATE CASCADE ON DELETE CASCADE,
		key_id         BIGINT NOT NULL REFERENCES encryption_keys(id) ON UPDATE CASCADE ON DELETE CASCADE,
		key_credential BYTEA  NOT NULL UNIQUE,
		key_signature  BYTEA  NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys (user_id)`,

	`CREATE TABLE IF NOT EXISTS documents_registry (
		id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_id     BIGINT       NOT NULL REFERENCES users(id) ON UPDATE CASCADE ON DELETE CASCADE,
		file_name   VARCHAR(512) NOT NULL,
		object_key  VARCHAR(1024),
		lock_status BOOLEAN      NOT NULL DEFAULT false,
		op_status   VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_registry_user_id ON documents_registry (user_id)`,

	`CREATE TABLE IF NOT EXISTS vector_indexes (
		id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		index_arn  VARCHAR(1024) NOT NULL UNIQUE,
		bucket_arn VARCHAR(1024) NOT NULL,
		status     VARCHAR(16)   NOT NULL,
		created_at TIMESTAMPTZ   NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ   NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vector_indexes_status ON vector_indexes (status)`,

	`CREATE TABLE IF NOT EXISTS knowledge_bases (
		id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_id    BIGINT       NOT NULL REFERENCES users(id) ON UPDATE CASCADE ON DELETE CASCADE,
		index_id   BIGINT       NOT NULL REFERENCES vector_indexes(id),
		name       VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_bases_user_id ON knowledge_bases (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_bases_index_id ON knowledge_bases (index_id)`,

	`CREATE TABLE IF NOT EXISTS kb_documents (
		id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		knowledge_base_id BIGINT      NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
		document_id       BIGINT      NOT NULL REFERENCES documents_registry(id),
		status            VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (knowledge_base_id, document_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kb_documents_document_id ON kb_documents (document_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
