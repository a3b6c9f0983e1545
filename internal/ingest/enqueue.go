package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/deskmate/internal/storage"
)

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// EnqueueExtract queues a faq_extract job for document and returns its id.
func EnqueueExtract(ctx context.Context, q Enqueuer, document string) (string, error) {
	payload, err := json.Marshal(storage.ExtractPayload{Document: document})
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	if err := q.EnqueueJob(ctx, storage.Job{
		ID:          id,
		Type:        storage.JobFaqExtract,
		PayloadJSON: string(payload),
	}); err != nil {
		return "", fmt.Errorf("enqueueing extraction of %s: %w", document, err)
	}
	return id, nil
}
