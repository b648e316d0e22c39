package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kbforge/indexpool/internal/fault"
)

// CreatedKnowledgeBase is the result of a successful create: the new
// knowledge base and the index it was bound to.
type CreatedKnowledgeBase struct {
	KB    KnowledgeBase
	Index VectorIndex
}

// CreateKnowledgeBase reserves one AVAILABLE index and inserts the
// knowledge base bound to it, in a single transaction. On any failure the
// reservation rolls back with the transaction. Returns fault.ErrNoCapacity
// when the pool is empty.
func (s *Store) CreateKnowledgeBase(ctx context.Context, userID int64, name string) (CreatedKnowledgeBase, error) {
	var created CreatedKnowledgeBase
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		idx, err := reserveAvailableIndexTx(ctx, tx)
		if err != nil {
			return err
		}

		const q = `
INSERT INTO knowledge_bases (user_id, index_id, name)
VALUES ($1, $2, $3)
RETURNING id, user_id, index_id, name, created_at, updated_at`

		var kb KnowledgeBase
		if err := tx.GetContext(ctx, &kb, q, userID, idx.ID, name); err != nil {
			return fmt.Errorf("inserting knowledge base: %w", mapConstraint(err))
		}

		created = CreatedKnowledgeBase{KB: kb, Index: idx}
		return nil
	})
	if err != nil {
		return CreatedKnowledgeBase{}, err
	}
	return created, nil
}

// DeleteKnowledgeBase removes the user's knowledge base in one
// transaction: the linked index moves to CLEANUP, membership rows are
// dropped, then the knowledge-base row itself. Returns fault.ErrNotFound
// when the knowledge base does not exist for this user and
// fault.ErrInconsistent when it has lost its index row.
func (s *Store) DeleteKnowledgeBase(ctx context.Context, userID, kbID int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		const selectQ = `
SELECT id, user_id, index_id, name, created_at, updated_at
FROM knowledge_bases
WHERE id = $1 AND user_id = $2
FOR UPDATE`

		var kb KnowledgeBase
		if err := tx.GetContext(ctx, &kb, selectQ, kbID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: knowledge base %d", fault.ErrNotFound, kbID)
			}
			return fmt.Errorf("selecting knowledge base %d: %w", kbID, err)
		}

		const cleanupQ = `
UPDATE vector_indexes SET status = 'CLEANUP', updated_at = now() WHERE id = $1`

		res, err := tx.ExecContext(ctx, cleanupQ, kb.IndexID)
		if err != nil {
			return fmt.Errorf("marking index %d for cleanup: %w", kb.IndexID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: knowledge base %d references missing index %d",
				fault.ErrInconsistent, kbID, kb.IndexID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM kb_documents WHERE knowledge_base_id = $1`, kbID); err != nil {
			return fmt.Errorf("deleting knowledge base %d memberships: %w", kbID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM knowledge_bases WHERE id = $1`, kbID); err != nil {
			return fmt.Errorf("deleting knowledge base %d: %w", kbID, err)
		}
		return nil
	})
}

// GetKnowledgeBase returns the user's knowledge base together with its
// index ARN, or fault.ErrNotFound.
func (s *Store) GetKnowledgeBase(ctx context.Context, userID, kbID int64) (KnowledgeBase, string, error) {
	const q = `
SELECT kb.id, kb.user_id, kb.index_id, kb.name, kb.created_at, kb.updated_at, vi.index_arn
FROM knowledge_bases kb
JOIN vector_indexes vi ON vi.id = kb.index_id
WHERE kb.id = $1 AND kb.user_id = $2`

	var row struct {
		KnowledgeBase
		IndexARN string `db:"index_arn"`
	}
	if err := s.db.GetContext(ctx, &row, q, kbID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KnowledgeBase{}, "", fmt.Errorf("%w: knowledge base %d", fault.ErrNotFound, kbID)
		}
		return KnowledgeBase{}, "", fmt.Errorf("selecting knowledge base %d: %w", kbID, err)
	}
	return row.KnowledgeBase, row.IndexARN, nil
}

// ListKnowledgeBases returns one page of the user's knowledge bases plus
// the total count.
func (s *Store) ListKnowledgeBases(ctx context.Context, userID int64, limit, offset int) ([]KnowledgeBase, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT count(*) FROM knowledge_bases WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("counting knowledge bases: %w", err)
	}

	const q = `
SELECT id, user_id, index_id, name, created_at, updated_at
FROM knowledge_bases
WHERE user_id = $1
ORDER BY id
LIMIT $2 OFFSET $3`

	var kbs []KnowledgeBase
	if err := s.db.SelectContext(ctx, &kbs, q, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("listing knowledge bases: %w", err)
	}
	return kbs, total, nil
}

// ListKnowledgeBaseDocuments returns one page of the documents attached to
// a knowledge base plus the total count. Locked registry entries and
// entries whose upload has not succeeded are excluded.
func (s *Store) ListKnowledgeBaseDocuments(ctx context.Context, userID, kbID int64, limit, offset int) ([]KBDocument, int64, error) {
	const baseWhere = `
FROM documents_registry dr
JOIN kb_documents kd ON dr.id = kd.document_id
WHERE NOT dr.lock_status
  AND dr.user_id = $1
  AND dr.op_status = 'SUCCESS'
  AND kd.knowledge_base_id = $2`

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT count(*)`+baseWhere, userID, kbID); err != nil {
		return nil, 0, fmt.Errorf("counting knowledge base documents: %w", err)
	}

	q := `
SELECT kd.id AS kb_doc_id, dr.id AS doc_id, dr.file_name, kd.status` + baseWhere + `
ORDER BY kd.id
LIMIT $3 OFFSET $4`

	var docs []KBDocument
	if err := s.db.SelectContext(ctx, &docs, q, userID, kbID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("listing knowledge base documents: %w", err)
	}
	return docs, total, nil
}

// AttachDocuments inserts membership rows for the given registry documents
// and returns the created memberships with their file names, ready to be
// enqueued for ingestion. A document already attached to the knowledge
// base surfaces as fault.ErrConflict.
func (s *Store) AttachDocuments(ctx context.Context, kbID int64, docIDs []int64) ([]KBDocument, error) {
	var attached []KBDocument
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		const q = `
WITH inserted AS (
	INSERT INTO kb_documents (knowledge_base_id, document_id)
	SELECT $1, unnest($2::bigint[])
	RETURNING id, document_id
)
SELECT i.id AS kb_doc_id, dr.id AS doc_id, dr.file_name, 'PENDING' AS status
FROM inserted i
JOIN documents_registry dr ON dr.id = i.document_id`

		if err := tx.SelectContext(ctx, &attached, q, kbID, docIDs); err != nil {
			return fmt.Errorf("attaching documents to knowledge base %d: %w", kbID, mapConstraint(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attached, nil
}

// DetachDocuments removes membership rows and returns what was removed, so
// the caller can enqueue the deletions for the ingestion workers. Returns
// fault.ErrNotFound when none of the memberships exist.
func (s *Store) DetachDocuments(ctx context.Context, kbID int64, kbDocIDs []int64) ([]KBDocument, error) {
	var detached []KBDocument
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		const q = `
WITH removed AS (
	DELETE FROM kb_documents
	WHERE knowledge_base_id = $1 AND id = ANY($2::bigint[])
	RETURNING id, document_id, status
)
SELECT r.id AS kb_doc_id, dr.id AS doc_id, dr.file_name, r.status
FROM removed r
JOIN documents_registry dr ON dr.id = r.document_id`

		if err := tx.SelectContext(ctx, &detached, q, kbID, kbDocIDs); err != nil {
			return fmt.Errorf("detaching documents from knowledge base %d: %w", kbID, err)
		}
		if len(detached) == 0 {
			return fmt.Errorf("%w: no matching documents in knowledge base %d", fault.ErrNotFound, kbID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detached, nil
}

// DocumentInUse reports whether any knowledge base still references the
// registry document. Callers deleting registry entries treat true as
// fault.ErrConflict.
func (s *Store) DocumentInUse(ctx context.Context, docID int64) (bool, error) {
	var inUse bool
	const q = `SELECT EXISTS (SELECT 1 FROM kb_documents WHERE document_id = $1)`

	if err := s.db.GetContext(ctx, &inUse, q, docID); err != nil {
		return false, fmt.Errorf("checking document %d use: %w", docID, err)
	}
	return inUse, nil
}
