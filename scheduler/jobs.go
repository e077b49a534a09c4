package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/shantanubawankar/Stockpricetracker/models"
)

// Retention windows for maintenance jobs
const (
	TriggeredAlertRetention = 30 * 24 * time.Hour
	SnapshotRetention       = 30 * 24 * time.Hour
)

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Purge long-inactive alerts daily at 03:00
	s.cron.Every(1).Day().At("03:00").Do(func() {
		s.purgeInactiveAlerts()
	})

	// Prune archived quote snapshots weekly on Sunday at 01:00
	if s.archive != nil {
		s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
			s.pruneQuoteArchive()
		})
	}

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// purgeInactiveAlerts deletes alerts that fired more than the retention
// window ago. Active alerts are never touched.
func (s *Scheduler) purgeInactiveAlerts() {
	cutoff := time.Now().Add(-TriggeredAlertRetention)
	result := s.db.Where("active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.Alert{})
	if result.Error != nil {
		log.Printf("Error purging inactive alerts: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Purged %d inactive alerts", result.RowsAffected)
	}
}

// pruneQuoteArchive removes old quote snapshots from the archive
func (s *Scheduler) pruneQuoteArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.archive.PruneOlderThan(ctx, SnapshotRetention)
	if err != nil {
		log.Printf("Error pruning quote archive: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Pruned %d archived quote snapshots", deleted)
	}
}
