package cloud

import (
	"encoding/json"
	"fmt"
)

// DocumentRef identifies one document within a knowledge base for the
// ingestion workers.
type DocumentRef struct {
	KBDocID   int64  `json:"kb_doc_id"`
	DocID     int64  `json:"doc_id"`
	FileName  string `json:"file_name"`
	ObjectKey string `json:"object_key,omitempty"`
}

// Message is the body sent to the ingestion queue on knowledge-base
// document operations. Exactly one of IndexDocs or DeleteDocs is populated
// per message; consumers tolerate unknown fields.
type Message struct {
	IngestionJobID int64         `json:"ingestion_job_id"`
	IndexDocs      []DocumentRef `json:"index_kb_doc_id,omitempty"`
	DeleteDocs     []DocumentRef `json:"delete_kb_doc_id,omitempty"`
	IndexARN       string        `json:"index_arn"`
	KBID           int64         `json:"kb_id"`
	UserID         int64         `json:"user_id"`
}

// Validate enforces the exactly-one-operation shape.
func (m Message) Validate() error {
	switch {
	case len(m.IndexDocs) == 0 && len(m.DeleteDocs) == 0:
		return fmt.Errorf("message %d carries no documents", m.IngestionJobID)
	case len(m.IndexDocs) > 0 && len(m.DeleteDocs) > 0:
		return fmt.Errorf("message %d carries both index and delete documents", m.IngestionJobID)
	}
	if m.IndexARN == "" {
		return fmt.Errorf("message %d has no index ARN", m.IngestionJobID)
	}
	return nil
}

// encode serializes the message body for the queue.
func (m Message) encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding queue message: %w", err)
	}
	return string(b), nil
}

// decodeMessage parses a queue body. Unknown fields are ignored so newer
// producers can add fields without breaking this consumer.
func decodeMessage(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("decoding queue message: %w", err)
	}
	return m, nil
}
