package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shantanubawankar/Stockpricetracker/models"
)

// StreamStore is the persistence surface the streaming core needs. Each
// tick reads the watchlist and alerts fresh; deactivation is idempotent.
type StreamStore interface {
	WatchlistSymbols(ctx context.Context, userID uint) ([]string, error)
	ActiveAlerts(ctx context.Context, userID uint, symbol string) ([]models.Alert, error)
	// DeactivateAlert sets the alert inactive and reports whether this
	// call performed the transition. A second call for the same id
	// returns false with no error.
	DeactivateAlert(ctx context.Context, id uint) (bool, error)
}

// GormStore implements StreamStore on the relational database
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WatchlistSymbols(ctx context.Context, userID uint) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.WatchlistItem{}).
		Where("user_id = ?", userID).
		Order("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("list watchlist symbols: %w", err)
	}
	return symbols, nil
}

func (s *GormStore) ActiveAlerts(ctx context.Context, userID uint, symbol string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND active = ?", userID, symbol, true).
		Order("id").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return alerts, nil
}

func (s *GormStore) DeactivateAlert(ctx context.Context, id uint) (bool, error) {
	// Conditional update keeps the one-shot invariant under concurrent
	// duplicate ticks: only the call that flips active wins.
	tx := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if tx.Error != nil {
		return false, fmt.Errorf("deactivate alert %d: %w", id, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
