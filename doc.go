// Package indexpool manages a warm pool of remote vector indexes backing
// a multi-tenant knowledge-base service.
//
// Creating a vector index is slow, so the pool keeps a configurable number
// of indexes pre-provisioned and AVAILABLE. Creating a knowledge base
// atomically reserves one of them; deleting a knowledge base marks its
// index for teardown. Background workers keep the pool at its floor and
// reclaim failed, stuck and orphaned indexes, with a daily sweep as the
// backstop.
//
// # Basic Usage
//
//	import "github.com/kbforge/indexpool"
//
//	ctx := context.Background()
//
//	cfg, err := indexpool.ConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := indexpool.New(cfg, indexpool.WithMinPool(5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Shutdown()
//
//	go func() {
//	    if err := svc.Start(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}()
//
//	kb, err := svc.CreateKnowledgeBase(ctx, userID, "support-articles")
//	if errors.Is(err, indexpool.ErrNoCapacity) {
//	    // Pool is empty; the creation attempt already triggered a refill.
//	    // Retry after the provisioning delay.
//	}
//
// # Document Ingestion
//
// The service does not run vectorization itself. EnqueueIngestion records
// the membership change and publishes a job to the ingestion queue:
//
//	err = svc.EnqueueIngestion(ctx, indexpool.IngestionRequest{
//	    UserID:         userID,
//	    KBID:           kb.ID,
//	    IngestionJobID: jobID,
//	    IndexDocIDs:    []int64{docID},
//	})
//
// # Out of Scope
//
// HTTP routing, authentication, presigned uploads and the ingestion
// workers consuming the queue live in the surrounding application; this
// package owns only the pool, the knowledge-base records and the queue
// producer.
package indexpool
