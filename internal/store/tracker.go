package store

import (
	"context"
	"time"

	"relentless-jobs/internal/models"
)

// RunTracker records a run's lifecycle: running, then completed or failed.
type RunTracker struct {
	store  StatusStore
	status models.RunStatus
	now    func() time.Time
}

func NewRunTracker(store StatusStore, runID string, searchURLs []string) *RunTracker {
	return &RunTracker{
		store: store,
		status: models.RunStatus{
			RunID:      runID,
			SearchURLs: searchURLs,
		},
		now: time.Now,
	}
}

// Start marks the run as running.
func (t *RunTracker) Start(ctx context.Context) error {
	now := t.now().UTC()
	t.status.Status = models.RunRunning
	t.status.CreatedAt = now
	t.status.UpdatedAt = now
	return t.store.SetStatus(ctx, t.status)
}

// Finish stores the summary with a completed or failed status.
func (t *RunTracker) Finish(ctx context.Context, summary models.RunSummary, runErr error) error {
	t.status.Status = models.RunCompleted
	if runErr != nil {
		t.status.Status = models.RunFailed
	}
	t.status.UpdatedAt = t.now().UTC()
	t.status.Summary = &summary
	return t.store.SetStatus(ctx, t.status)
}
