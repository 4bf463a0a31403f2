package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ideahub/backend/internal/models"
	"gorm.io/gorm"
)

// Store manages AiJob rows: submission with per-idea dedupe, atomic
// claiming for workers, and status transitions.
type Store struct {
	db          *gorm.DB
	maxAttempts int
}

// NewStore creates a job store. maxAttempts bounds retries per job.
func NewStore(db *gorm.DB, maxAttempts int) *Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Store{db: db, maxAttempts: maxAttempts}
}

// MaxAttempts returns the configured retry bound.
func (s *Store) MaxAttempts() int {
	return s.maxAttempts
}

// Submit enqueues a review job for the idea. At most one job per idea may
// be in flight; if one already is, that job is returned with reused=true.
// The partial unique index on ai_jobs makes the insert race-free: two
// concurrent submits for the same idea cannot both create a job.
func (s *Store) Submit(ctx context.Context, ideaID, requesterID string) (*models.AiJob, bool, error) {
	if existing, err := s.findInFlight(ctx, ideaID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, true, nil
	}

	job := &models.AiJob{
		IdeaID:      ideaID,
		RequesterID: requesterID,
		Status:      models.JobStatusPending,
	}
	err := s.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, false, nil
	}

	// Lost the insert race: another submit created the in-flight job
	// between our check and our insert. Return theirs.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := s.findInFlight(ctx, ideaID)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			return existing, true, nil
		}
		// The racing job finished in between. One retry is enough.
		retry := &models.AiJob{
			IdeaID:      ideaID,
			RequesterID: requesterID,
			Status:      models.JobStatusPending,
		}
		if err := s.db.WithContext(ctx).Create(retry).Error; err != nil {
			return nil, false, fmt.Errorf("failed to create review job: %w", err)
		}
		return retry, false, nil
	}

	return nil, false, fmt.Errorf("failed to create review job: %w", err)
}

func (s *Store) findInFlight(ctx context.Context, ideaID string) (*models.AiJob, error) {
	var job models.AiJob
	err := s.db.WithContext(ctx).
		Where("idea_id = ? AND status IN ?", ideaID, []string{models.JobStatusPending, models.JobStatusRunning}).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up in-flight job: %w", err)
	}
	return &job, nil
}

// GetByID loads one job.
func (s *Store) GetByID(ctx context.Context, jobID string) (*models.AiJob, error) {
	var job models.AiJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext atomically claims the oldest pending job, transitioning it to
// running and incrementing attempts. Returns (nil, nil) when the queue is
// empty. The guarded UPDATE makes this safe across multiple workers: only
// the one whose status check matches wins the row.
func (s *Store) ClaimNext(ctx context.Context) (*models.AiJob, error) {
	// A handful of candidates covers contention between a few workers.
	for i := 0; i < 5; i++ {
		var candidate models.AiJob
		err := s.db.WithContext(ctx).
			Where("status = ?", models.JobStatusPending).
			Order("created_at asc").
			Offset(i).
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find pending job: %w", err)
		}

		now := time.Now()
		res := s.db.WithContext(ctx).
			Model(&models.AiJob{}).
			Where("id = ? AND status = ?", candidate.ID, models.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     models.JobStatusRunning,
				"started_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to claim job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Another worker claimed it first; try the next candidate.
			continue
		}

		candidate.Status = models.JobStatusRunning
		candidate.StartedAt = &now
		candidate.Attempts++
		return &candidate, nil
	}
	return nil, nil
}

// MarkSucceeded completes a job.
func (s *Store) MarkSucceeded(ctx context.Context, jobID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.AiJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusSucceeded,
			"finished_at": now,
			"last_error":  "",
		}).Error
}

// MarkFailed records a failed attempt. If the job has attempts left it goes
// back to pending for a later tick; otherwise it becomes terminally failed.
// Returns true when the job was retried rather than failed.
func (s *Store) MarkFailed(ctx context.Context, job *models.AiJob, cause string) (bool, error) {
	if job.Attempts < s.maxAttempts {
		err := s.db.WithContext(ctx).
			Model(&models.AiJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":     models.JobStatusPending,
				"last_error": cause,
			}).Error
		return err == nil, err
	}

	now := time.Now()
	return false, s.db.WithContext(ctx).
		Model(&models.AiJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusFailed,
			"finished_at": now,
			"last_error":  cause,
		}).Error
}

// MarkFailedTerminal fails a job immediately regardless of attempts left,
// for unrecoverable causes like the idea having been deleted.
func (s *Store) MarkFailedTerminal(ctx context.Context, jobID, cause string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.AiJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusFailed,
			"finished_at": now,
			"last_error":  cause,
		}).Error
}
