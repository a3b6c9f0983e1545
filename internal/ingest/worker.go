package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/deskmate/internal/faq"
	"github.com/kalambet/deskmate/internal/storage"
)

// JobStore abstracts the job queue operations and FAQ persistence.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	AddFaqEntry(ctx context.Context, question, answer string, source storage.FaqSource) (storage.FaqEntry, error)
}

// DocumentExtractor turns a document reference into FAQ pairs.
type DocumentExtractor interface {
	Extract(ctx context.Context, ref string) []faq.Pair
}

// ExchangeLearner decides whether an exchange becomes an FAQ pair.
type ExchangeLearner interface {
	Consider(ctx context.Context, question, answer string) *faq.Pair
}

// Worker processes faq_extract and faq_learn jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	extractor DocumentExtractor
	learner   ExchangeLearner
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, extractor DocumentExtractor, learner ExchangeLearner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		extractor: extractor,
		learner:   learner,
		poll:      pollInterval,
		logger:    slog.Default().With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{storage.JobFaqExtract, storage.JobFaqLearn})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobFaqExtract:
		return w.extract(ctx, job)
	case storage.JobFaqLearn:
		return w.learn(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (w *Worker) extract(ctx context.Context, job *storage.Job) error {
	var payload storage.ExtractPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	pairs := w.extractor.Extract(ctx, payload.Document)
	saved, err := SavePairs(ctx, w.store, pairs, storage.SourcePDF)
	if err != nil {
		return err
	}
	w.logger.Info("document extracted", "job_id", job.ID, "document", payload.Document, "entries", len(saved))
	return nil
}

func (w *Worker) learn(ctx context.Context, job *storage.Job) error {
	var payload storage.LearnPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	p := w.learner.Consider(ctx, payload.Question, payload.Answer)
	if p == nil {
		w.logger.Debug("exchange not learned", "job_id", job.ID, "turn_id", payload.TurnID)
		return nil
	}
	e, err := w.store.AddFaqEntry(ctx, p.Question, p.Answer, storage.SourceConversation)
	if err != nil {
		return fmt.Errorf("saving learned entry: %w", err)
	}
	w.logger.Info("exchange learned", "job_id", job.ID, "turn_id", payload.TurnID, "faq_id", e.ID)
	return nil
}

// FaqAdder persists FAQ entries.
type FaqAdder interface {
	AddFaqEntry(ctx context.Context, question, answer string, source storage.FaqSource) (storage.FaqEntry, error)
}

// SavePairs stores pairs tagged with source and returns the created entries.
func SavePairs(ctx context.Context, store FaqAdder, pairs []faq.Pair, source storage.FaqSource) ([]storage.FaqEntry, error) {
	saved := make([]storage.FaqEntry, 0, len(pairs))
	for _, p := range pairs {
		e, err := store.AddFaqEntry(ctx, p.Question, p.Answer, source)
		if err != nil {
			return saved, fmt.Errorf("saving FAQ entry: %w", err)
		}
		saved = append(saved, e)
	}
	return saved, nil
}
