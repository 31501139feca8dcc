package models

import "time"

// Wallet holds a user's prepaid jade balance. One row per user, created
// lazily on the first credit or debit. Balance never goes negative: the
// only mutation path is the ledger's conditional single-statement update.
type Wallet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_wallets_user" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
