package models

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User represents a registered account
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetPassword hashes and stores the password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a password against the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// WatchlistItem represents a tracked symbol on a user's watchlist
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_symbol" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Symbol    string    `gorm:"uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert represents a one-shot price alert. Once Active transitions to
// false it never goes back to true for that row.
type Alert struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Symbol    string          `gorm:"index;not null" json:"symbol"`
	Direction string          `gorm:"not null" json:"direction"` // above, below
	Threshold decimal.Decimal `gorm:"type:decimal(15,4)" json:"price"`
	Active    bool            `gorm:"default:true" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Alert direction constants
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// IsValidDirection checks if the alert direction is valid
func IsValidDirection(direction string) bool {
	return direction == DirectionAbove || direction == DirectionBelow
}

// MigrateUserModels runs database migrations for all persisted models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&WatchlistItem{},
		&Alert{},
	)
}
