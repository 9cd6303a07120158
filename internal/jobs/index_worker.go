package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/andino-labs/policychat/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed index job
	MaxRetries = 3

	// claimBatchSize caps how many jobs one pass claims
	claimBatchSize = 100
)

// IndexJobQueue defines the interface for index job persistence
type IndexJobQueue interface {
	// ClaimPending claims up to limit pending jobs, moving them to processing
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)

	// UpdateStatus updates a job's terminal status
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error

	// Requeue bumps a job's retry count and returns it to pending
	Requeue(ctx context.Context, id string, errMsg string) error
}

// DocumentIndexer defines the interface for re-indexing a document
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, documentID string) error
}

// IndexWorker retries documents whose synchronous indexing failed at upload
// time. Claimed jobs stay in processing until they either complete or get
// requeued, so concurrent workers never double-index a document.
type IndexWorker struct {
	queue   IndexJobQueue
	indexer DocumentIndexer
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(queue IndexJobQueue, indexer DocumentIndexer) *IndexWorker {
	return &IndexWorker{
		queue:   queue,
		indexer: indexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.queue.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending index jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d pending index jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("error processing index job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	log.Printf("re-indexing document %s (job %s)", job.DocumentID, job.ID)

	if err := w.indexer.IndexDocument(ctx, job.DocumentID); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("index job %s completed", job.ID)
	return nil
}

// handleJobFailure requeues the job or, past MaxRetries, marks it failed.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log.Printf("index job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= MaxRetries {
		log.Printf("index job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("index job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.queue.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
