package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mweidner/JadeFrame/app/models"
)

// Repository provides the storage operations used by the ledger service.
// ApplyCredit and ApplyDebit must be atomic with respect to concurrent
// mutations of the same wallet, and must record the ledger entry in the same
// transaction as the balance change so a crash between commit and response
// still leaves the reference durably claimed.
type Repository interface {
	FindEntryByReference(reference string) (*models.LedgerEntry, error)
	ApplyCredit(userID uint, amount int64, reason, reference string) (int64, error)
	ApplyDebit(userID uint, amount int64, reason, reference string) (int64, error)
	GetBalance(userID uint) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindEntryByReference(reference string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.Where("reference = ?", reference).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) ApplyCredit(userID uint, amount int64, reason, reference string) (int64, error) {
	var balanceAfter int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Wallets are created lazily on first use.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&models.Wallet{UserID: userID}).Error; err != nil {
			return err
		}

		res := tx.Exec(
			"UPDATE wallets SET balance = balance + ?, updated_at = ? WHERE user_id = ?",
			amount, time.Now(), userID,
		)
		if res.Error != nil {
			return res.Error
		}

		balance, err := walletBalance(tx, userID)
		if err != nil {
			return err
		}
		balanceAfter = balance

		return tx.Create(&models.LedgerEntry{
			Reference:    reference,
			UserID:       userID,
			Delta:        amount,
			Reason:       reason,
			BalanceAfter: balanceAfter,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balanceAfter, nil
}

// ApplyDebit decrements the balance with a single conditional statement:
// the balance check and the subtraction cannot be separated by a concurrent
// debit. A missing wallet row behaves like a zero balance.
func (r *gormRepository) ApplyDebit(userID uint, amount int64, reason, reference string) (int64, error) {
	var balanceAfter int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			"UPDATE wallets SET balance = balance - ?, updated_at = ? WHERE user_id = ? AND balance >= ?",
			amount, time.Now(), userID, amount,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		balance, err := walletBalance(tx, userID)
		if err != nil {
			return err
		}
		balanceAfter = balance

		return tx.Create(&models.LedgerEntry{
			Reference:    reference,
			UserID:       userID,
			Delta:        -amount,
			Reason:       reason,
			BalanceAfter: balanceAfter,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balanceAfter, nil
}

func (r *gormRepository) GetBalance(userID uint) (int64, error) {
	return walletBalance(r.db, userID)
}

func walletBalance(tx *gorm.DB, userID uint) (int64, error) {
	var wallet models.Wallet
	if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return wallet.Balance, nil
}
