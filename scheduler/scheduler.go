package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"github.com/shantanubawankar/Stockpricetracker/services"
)

// Scheduler manages background maintenance jobs
type Scheduler struct {
	cron    *gocron.Scheduler
	db      *gorm.DB
	archive *services.QuoteArchive
}

// NewScheduler creates a new scheduler instance. archive may be nil.
func NewScheduler(db *gorm.DB, archive *services.QuoteArchive) *Scheduler {
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		db:      db,
		archive: archive,
	}
}
