package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/metrics"
	"github.com/ideahub/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Worker polls the job store and processes pending review jobs one at a
// time. Run one per process; multiple processes coordinate through the
// atomic claim in the store.
type Worker struct {
	db        *gorm.DB
	store     *Store
	generator Generator

	interval time.Duration
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a review worker. interval is the poll period and
// timeout bounds each generator call.
func NewWorker(db *gorm.DB, store *Store, generator Generator, interval, timeout time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		db:        db,
		store:     store,
		generator: generator,
		interval:  interval,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	logger.Log.Info("review worker started",
		zap.Duration("poll_interval", w.interval),
		zap.Int("max_attempts", w.store.MaxAttempts()))
}

// Stop cancels the poll loop and any in-flight generator call, then waits
// for the current job to be settled (requeued or terminally failed) before
// returning. Status writes use a detached context so shutdown never
// strands a job in running.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	logger.Log.Info("review worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Tick(w.ctx)
		}
	}
}

// Tick claims and processes at most one job. Exported so tests and the CLI
// can drive the worker without the ticker.
func (w *Worker) Tick(ctx context.Context) {
	job, err := w.store.ClaimNext(ctx)
	if err != nil {
		logger.Log.Error("failed to claim review job", zap.Error(err))
		return
	}
	if job == nil {
		return
	}

	start := time.Now()
	w.process(ctx, job)
	metrics.Get().ReviewJobDuration.Observe(time.Since(start).Seconds())
}

func (w *Worker) process(ctx context.Context, job *models.AiJob) {
	log := logger.Log.With(
		logger.WithJobID(job.ID),
		logger.WithIdeaID(job.IdeaID),
		zap.Int("attempt", job.Attempts))

	// A claimed job must always reach a follow-up status. Shutdown cancels
	// ctx mid-flight, so all writes after the claim run detached from it;
	// only the generator call itself honors the cancellation.
	writeCtx := context.WithoutCancel(ctx)

	var idea models.Idea
	err := w.db.WithContext(writeCtx).First(&idea, "id = ?", job.IdeaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The idea is gone; retrying cannot help.
		if err := w.store.MarkFailedTerminal(writeCtx, job.ID, "idea not found"); err != nil {
			log.Error("failed to fail orphaned job", zap.Error(err))
		}
		metrics.Get().ReviewJobsTotal.WithLabelValues("failed").Inc()
		log.Warn("review job failed, idea no longer exists")
		return
	}
	if err != nil {
		w.handleFailure(writeCtx, job, log, "failed to load idea: "+err.Error())
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result, err := w.generator.Generate(genCtx, IdeaInput{
		Title:   idea.Title,
		Summary: idea.Summary,
		Content: idea.Content,
		Tags:    idea.Tags,
	})
	if err != nil {
		w.handleFailure(writeCtx, job, log, err.Error())
		return
	}

	persisted := models.AIReview{
		FeasibilityScore:     result.FeasibilityScore,
		ProfitPotentialScore: result.ProfitPotentialScore,
		AnalysisText:         result.AnalysisText,
		Model:                result.Model,
		CreatedAt:            time.Now(),
	}
	if err := w.db.WithContext(writeCtx).
		Model(&models.Idea{}).
		Where("id = ?", idea.ID).
		Update("ai_review", &persisted).Error; err != nil {
		w.handleFailure(writeCtx, job, log, "failed to persist review: "+err.Error())
		return
	}

	if err := w.store.MarkSucceeded(writeCtx, job.ID); err != nil {
		log.Error("failed to mark job succeeded", zap.Error(err))
		return
	}
	metrics.Get().ReviewJobsTotal.WithLabelValues("succeeded").Inc()
	log.Info("review job succeeded",
		zap.Int("feasibility", result.FeasibilityScore),
		zap.Int("profit_potential", result.ProfitPotentialScore))
}

func (w *Worker) handleFailure(ctx context.Context, job *models.AiJob, log *zap.Logger, cause string) {
	retried, err := w.store.MarkFailed(ctx, job, cause)
	if err != nil {
		log.Error("failed to record job failure", zap.Error(err), zap.String("cause", cause))
		return
	}
	if retried {
		metrics.Get().ReviewJobsTotal.WithLabelValues("retried").Inc()
		log.Warn("review job attempt failed, will retry", zap.String("cause", cause))
	} else {
		metrics.Get().ReviewJobsTotal.WithLabelValues("failed").Inc()
		log.Warn("review job failed permanently", zap.String("cause", cause))
	}
}
