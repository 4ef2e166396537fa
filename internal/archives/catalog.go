package archives

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yesterday-dev/yesterday/internal/models"
)

// Catalog caches the bucket listing in SQLite so the API does not shell out
// to gsutil on every request
type Catalog struct {
	db     *gorm.DB
	lister Lister
	logger zerolog.Logger

	mu          sync.Mutex // serializes refreshes
	refreshedAt time.Time
}

// NewCatalog creates a catalog backed by db
func NewCatalog(db *gorm.DB, lister Lister, logger zerolog.Logger) *Catalog {
	return &Catalog{
		db:     db,
		lister: lister,
		logger: logger.With().Str("component", "archive_catalog").Logger(),
	}
}

// Refresh replaces the cached listing with the current bucket contents
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Catalog) refreshLocked(ctx context.Context) (int, error) {
	archives, err := c.lister.List(ctx)
	if err != nil {
		return 0, err
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Archive{}).Error; err != nil {
			return fmt.Errorf("failed to clear archives: %w", err)
		}
		if len(archives) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&archives, 100).Error; err != nil {
			return fmt.Errorf("failed to store archives: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.refreshedAt = time.Now()
	c.logger.Info().Int("archives", len(archives)).Msg("Archive inventory refreshed")

	return len(archives), nil
}

// List returns cached archives, newest first. The cache is filled on first
// use and whenever force is set.
func (c *Catalog) List(ctx context.Context, force bool) ([]models.Archive, error) {
	c.mu.Lock()
	if force || c.refreshedAt.IsZero() {
		if _, err := c.refreshLocked(ctx); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	var archives []models.Archive
	if err := c.db.WithContext(ctx).Order("backup_id DESC").Order("filename DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("failed to load archives: %w", err)
	}
	return archives, nil
}

// RefreshedAt returns when the cache was last filled
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshedAt
}

// StartScheduler refreshes the catalog on the given cron schedule.
// The caller stops the returned cron on shutdown.
func (c *Catalog) StartScheduler(schedule string) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Error().Err(err).Msg("Scheduled archive refresh failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	scheduler.Start()
	c.logger.Info().Str("schedule", schedule).Msg("Archive refresh scheduler started")

	return scheduler, nil
}
