package models

import "time"

// LedgerEntry records one applied wallet mutation. The unique reference is
// the idempotency key: a replayed credit/debit finds the existing row and
// returns its BalanceAfter instead of applying the delta again.
type LedgerEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Reference    string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_ledger_entries_reference" json:"reference"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Delta        int64     `gorm:"not null" json:"delta"`
	Reason       string    `gorm:"type:varchar(191);not null" json:"reason"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
