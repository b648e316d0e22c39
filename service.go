package indexpool

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/logging"
	"github.com/kbforge/indexpool/internal/store"
)

// KnowledgeBase is one tenant-owned knowledge base as seen by callers.
type KnowledgeBase struct {
	ID        int64
	Name      string
	IndexARN  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one document attached to a knowledge base.
type Document struct {
	KBDocID  int64
	DocID    int64
	FileName string
	Status   string
}

// PoolStats are per-status counts of the index pool. Provisioning counts
// only records younger than the configured stuck threshold.
type PoolStats struct {
	Total        int64
	Available    int64
	Provisioning int64
	Failed       int64
	Cleanup      int64
	Destroyed    int64
}

// IngestionRequest asks the ingestion workers to index documents into a
// knowledge base or remove them from it. Exactly one of IndexDocIDs
// (registry document IDs to attach and index) and DeleteKBDocIDs
// (membership row IDs to detach and delete) must be populated.
type IngestionRequest struct {
	UserID         int64
	KBID           int64
	IngestionJobID int64
	IndexDocIDs    []int64
	DeleteKBDocIDs []int64
}

// CreateKnowledgeBase reserves an index from the pool and creates a
// knowledge base bound to it for the given user. A reconcile cycle is
// triggered afterwards so the pool refills in the background.
//
// Returns ErrNoCapacity when the pool has no AVAILABLE index; the trigger
// still fires, so a retry after the provisioning delay usually succeeds.
// Returns ErrConflict when the user already has a knowledge base with
// this name.
func (s *Service) CreateKnowledgeBase(ctx context.Context, userID int64, name string) (KnowledgeBase, error) {
	if err := s.requireReady(); err != nil {
		return KnowledgeBase{}, err
	}
	if name == "" {
		return KnowledgeBase{}, fmt.Errorf("%w: knowledge base name must not be empty", fault.ErrConflict)
	}

	created, err := s.kb.CreateKnowledgeBase(ctx, userID, name)
	// The pool shrank, or the creation found it empty. Either way the
	// reconcile worker should look.
	s.triggers.TriggerReconcile()
	if err != nil {
		return KnowledgeBase{}, err
	}

	logging.Logger().Info("knowledge base created",
		"kb_id", created.KB.ID, "user_id", userID, "index_arn", created.Index.IndexARN)
	return KnowledgeBase{
		ID:        created.KB.ID,
		Name:      created.KB.Name,
		IndexARN:  created.Index.IndexARN,
		CreatedAt: created.KB.CreatedAt,
		UpdatedAt: created.KB.UpdatedAt,
	}, nil
}

// DeleteKnowledgeBase removes the user's knowledge base and marks its
// index for teardown, then triggers a cleanup cycle to reclaim the remote
// index in the background. Returns ErrNotFound when the knowledge base
// does not exist for this user.
func (s *Service) DeleteKnowledgeBase(ctx context.Context, userID, kbID int64) error {
	if err := s.requireReady(); err != nil {
		return err
	}

	if err := s.kb.DeleteKnowledgeBase(ctx, userID, kbID); err != nil {
		return err
	}
	s.triggers.TriggerCleanup()
	logging.Logger().Info("knowledge base deleted", "kb_id", kbID, "user_id", userID)
	return nil
}

// ListKnowledgeBases returns one page of the user's knowledge bases and
// the total count. Non-positive limits default to DefaultListLimit, which
// is also the maximum page size.
func (s *Service) ListKnowledgeBases(ctx context.Context, userID int64, limit, offset int) ([]KnowledgeBase, int64, error) {
	if err := s.requireReady(); err != nil {
		return nil, 0, err
	}

	items, total, err := s.kb.ListKnowledgeBases(ctx, userID, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, 0, err
	}
	out := lo.Map(items, func(kb store.KnowledgeBase, _ int) KnowledgeBase {
		return KnowledgeBase{
			ID:        kb.ID,
			Name:      kb.Name,
			CreatedAt: kb.CreatedAt,
			UpdatedAt: kb.UpdatedAt,
		}
	})
	return out, total, nil
}

// ListKnowledgeBaseDocuments returns one page of the documents attached
// to the user's knowledge base and the total count. Returns ErrNotFound
// when the knowledge base does not exist for this user.
func (s *Service) ListKnowledgeBaseDocuments(ctx context.Context, userID, kbID int64, limit, offset int) ([]Document, int64, error) {
	if err := s.requireReady(); err != nil {
		return nil, 0, err
	}

	items, total, err := s.kb.ListKnowledgeBaseDocuments(ctx, userID, kbID, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, 0, err
	}
	out := lo.Map(items, func(d store.KBDocument, _ int) Document {
		return Document{
			KBDocID:  d.KBDocID,
			DocID:    d.DocID,
			FileName: d.FileName,
			Status:   d.Status,
		}
	})
	return out, total, nil
}

// EnqueueIngestion attaches or detaches documents on the user's knowledge
// base and hands the actual vector work to the ingestion workers through
// the queue. Membership changes commit before the send; a failed send is
// returned so the caller can retry the job.
func (s *Service) EnqueueIngestion(ctx context.Context, req IngestionRequest) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	if (len(req.IndexDocIDs) > 0) == (len(req.DeleteKBDocIDs) > 0) {
		return fmt.Errorf("%w: exactly one of index and delete documents must be set", fault.ErrConflict)
	}

	kb, indexARN, err := s.kb.GetKnowledgeBase(ctx, req.UserID, req.KBID)
	if err != nil {
		return err
	}

	msg := cloud.Message{
		IngestionJobID: req.IngestionJobID,
		IndexARN:       indexARN,
		KBID:           kb.ID,
		UserID:         req.UserID,
	}
	switch {
	case len(req.IndexDocIDs) > 0:
		attached, err := s.kb.AttachDocuments(ctx, kb.ID, req.IndexDocIDs)
		if err != nil {
			return err
		}
		if len(attached) == 0 {
			return fmt.Errorf("%w: no attachable documents", fault.ErrNotFound)
		}
		msg.IndexDocs = toDocumentRefs(attached)
	default:
		detached, err := s.kb.DetachDocuments(ctx, kb.ID, req.DeleteKBDocIDs)
		if err != nil {
			return err
		}
		if len(detached) == 0 {
			return fmt.Errorf("%w: no matching documents to delete", fault.ErrNotFound)
		}
		msg.DeleteDocs = toDocumentRefs(detached)
	}

	if err := s.queue.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("enqueueing ingestion job %d: %w", req.IngestionJobID, err)
	}
	logging.Logger().Info("ingestion job enqueued",
		"job_id", req.IngestionJobID, "kb_id", kb.ID,
		"index_docs", len(msg.IndexDocs), "delete_docs", len(msg.DeleteDocs))
	return nil
}

// PoolStats reports the current index-pool composition for operators.
func (s *Service) PoolStats(ctx context.Context) (PoolStats, error) {
	if err := s.requireReady(); err != nil {
		return PoolStats{}, err
	}

	stats, err := s.kb.PoolStats(ctx, s.cfg.StuckThreshold)
	if err != nil {
		return PoolStats{}, err
	}
	return PoolStats{
		Total:        stats.Total,
		Available:    stats.Available,
		Provisioning: stats.Provisioning,
		Failed:       stats.Failed,
		Cleanup:      stats.Cleanup,
		Destroyed:    stats.Destroyed,
	}, nil
}

func toDocumentRefs(docs []store.KBDocument) []cloud.DocumentRef {
	return lo.Map(docs, func(d store.KBDocument, _ int) cloud.DocumentRef {
		return cloud.DocumentRef{
			KBDocID:  d.KBDocID,
			DocID:    d.DocID,
			FileName: d.FileName,
		}
	})
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
