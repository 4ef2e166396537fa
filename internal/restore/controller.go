package restore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	msgCompleted         = "Restoration completed successfully!"
	msgFailed            = "Restoration failed"
	msgFailedException   = "Restoration failed with exception"
	errNonZeroExit       = "Script exited with non-zero status"
	reasonLoaded         = "Backup is already loaded"
	reasonAlreadyLoading = "Backup is already being loaded"
)

// LoadChecker reports whether a backup is already running locally
type LoadChecker interface {
	IsLoaded(ctx context.Context, backupID string) (bool, error)
}

// Observer is notified about job lifecycle events. Implementations must not block.
type Observer interface {
	JobStarted(backupID string)
	JobTransition(backupID string, status Status)
	JobFinished(backupID string, status Status, duration time.Duration)
}

// Options tunes controller behaviour
type Options struct {
	// MonotonicProgress clamps progress so a late milestone never moves it backward
	MonotonicProgress bool

	// Observer receives lifecycle events; nil disables notifications
	Observer Observer
}

// Controller starts restorations and serves their progress.
// Each restoration runs in its own goroutine, which is the only writer to its job record.
type Controller struct {
	store      *Store
	runner     Runner
	classifier *Classifier
	loaded     LoadChecker
	opts       Options
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// NewController creates a restoration controller
func NewController(store *Store, runner Runner, classifier *Classifier, loaded LoadChecker, opts Options, logger zerolog.Logger) *Controller {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Controller{
		store:      store,
		runner:     runner,
		classifier: classifier,
		loaded:     loaded,
		opts:       opts,
		logger:     logger.With().Str("component", "restore_controller").Logger(),
	}
}

// Start begins restoring backupID in the background and returns the seeded job.
// It returns a *ConflictError if the backup is already loaded or being loaded.
func (c *Controller) Start(ctx context.Context, backupID string) (Job, error) {
	if c.loaded != nil {
		isLoaded, err := c.loaded.IsLoaded(ctx, backupID)
		if err != nil {
			c.logger.Warn().Err(err).Str("backup_id", backupID).Msg("Failed to check if backup is loaded, assuming it is not")
		}
		if isLoaded {
			return Job{}, &ConflictError{
				BackupID: backupID,
				Reason:   reasonLoaded,
				Status:   "running",
			}
		}
	}

	job, created := c.store.CreateIfAbsent(backupID)
	if !created {
		progress := job.Progress
		return Job{}, &ConflictError{
			BackupID: backupID,
			Reason:   reasonAlreadyLoading,
			Status:   string(job.Status),
			Progress: &progress,
		}
	}

	c.logger.Info().Str("backup_id", backupID).Msg("Starting restoration")
	if c.opts.Observer != nil {
		c.opts.Observer.JobStarted(backupID)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Detached from the request: a restoration outlives the call that started it.
		c.run(context.WithoutCancel(ctx), backupID, job.StartedAt)
	}()

	return job, nil
}

// Progress returns a snapshot of the job for backupID
func (c *Controller) Progress(backupID string) (Job, error) {
	job, ok := c.store.Get(backupID)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Jobs returns snapshots of every tracked job
func (c *Controller) Jobs() []Job {
	return c.store.List()
}

// Wait blocks until every background restoration has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context, backupID string, startedAt time.Time) {
	log := c.logger.With().Str("backup_id", backupID).Logger()

	proc, err := c.runner.Run(ctx, backupID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to launch restore script")
		c.fail(backupID, msgFailedException, err.Error(), startedAt)
		return
	}

	for line, err := range proc.Lines() {
		if err != nil {
			log.Error().Err(err).Msg("Failed to read restore output")
			_, _ = proc.Wait()
			c.fail(backupID, msgFailedException, err.Error(), startedAt)
			return
		}

		log.Debug().Str("line", line).Msg("Restore output")

		transition, ok := c.classifier.Classify(line)
		if !ok {
			continue
		}
		c.apply(backupID, transition)
		log.Info().
			Str("status", string(transition.Status)).
			Int("progress", transition.Progress).
			Msg("Restoration progressed")
	}

	exitCode, err := proc.Wait()
	if err != nil {
		log.Error().Err(err).Msg("Restore script did not exit cleanly")
		c.fail(backupID, msgFailedException, err.Error(), startedAt)
		return
	}

	if exitCode != 0 {
		log.Error().Int("exit_code", exitCode).Msg("Restore script failed")
		c.fail(backupID, msgFailed, errNonZeroExit, startedAt)
		return
	}

	now := time.Now().UTC()
	c.store.Update(backupID, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Message = msgCompleted
		j.CompletedAt = &now
	})
	log.Info().Dur("duration", now.Sub(startedAt)).Msg("Restoration completed")

	c.finished(backupID, StatusCompleted, startedAt)
}

func (c *Controller) apply(backupID string, t Transition) {
	c.store.Update(backupID, func(j *Job) {
		j.Status = t.Status
		j.Message = t.Message
		if c.opts.MonotonicProgress && t.Progress < j.Progress {
			return
		}
		j.Progress = t.Progress
	})
	if c.opts.Observer != nil {
		c.opts.Observer.JobTransition(backupID, t.Status)
	}
}

func (c *Controller) fail(backupID, message, errMsg string, startedAt time.Time) {
	now := time.Now().UTC()
	c.store.Update(backupID, func(j *Job) {
		j.Status = StatusFailed
		j.Message = message
		j.Error = &errMsg
		j.CompletedAt = &now
	})
	c.finished(backupID, StatusFailed, startedAt)
}

func (c *Controller) finished(backupID string, status Status, startedAt time.Time) {
	if c.opts.Observer != nil {
		c.opts.Observer.JobFinished(backupID, status, time.Since(startedAt))
	}
}
