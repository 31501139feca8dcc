package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
)

// Service provides idempotent credit and debit operations on user wallets.
// Every call carries a caller-supplied reference; replaying a reference
// returns the previously computed balance without touching the wallet again.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Credit increases the user's balance by amount. Replays of the same
// reference are no-ops returning the prior result.
func (s *Service) Credit(ctx context.Context, userID uint, amount int64, reason, reference string) (int64, error) {
	balance, err := s.apply(userID, amount, reason, reference, s.repo.ApplyCredit)
	s.count("credit", err)
	return balance, err
}

// Debit atomically checks and decrements the user's balance. Returns
// ErrInsufficientFunds when the balance does not cover the amount; the
// wallet is left unchanged in that case.
func (s *Service) Debit(ctx context.Context, userID uint, amount int64, reason, reference string) (int64, error) {
	balance, err := s.apply(userID, amount, reason, reference, s.repo.ApplyDebit)
	s.count("debit", err)
	return balance, err
}

// Balance returns the current wallet balance, zero for users without a
// wallet row yet.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.repo.GetBalance(userID)
}

func (s *Service) apply(userID uint, amount int64, reason, reference string, op func(uint, int64, string, string) (int64, error)) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if userID == 0 || strings.TrimSpace(reference) == "" {
		return 0, errors.New("user_id and reference are required")
	}

	// Fast path for replays: the reference was already applied.
	if entry, err := s.repo.FindEntryByReference(reference); err == nil {
		log.Infof("[Ledger] reference %s already applied, returning recorded balance", reference)
		return entry.BalanceAfter, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("ledger reference lookup: %w", err)
	}

	balance, err := op(userID, amount, reason, reference)
	if err != nil {
		// Two deliveries of the same reference can race past the lookup; the
		// unique index decides the winner and the loser reads its result.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			entry, lookupErr := s.repo.FindEntryByReference(reference)
			if lookupErr != nil {
				return 0, fmt.Errorf("ledger replay lookup after conflict: %w", lookupErr)
			}
			return entry.BalanceAfter, nil
		}
		return 0, err
	}
	return balance, nil
}

func (s *Service) count(op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		outcome = "insufficient_funds"
	case errors.Is(err, ErrInvalidAmount):
		outcome = "invalid_amount"
	case err != nil:
		outcome = "error"
	}
	metrics.Registry().LedgerOperations.WithLabelValues(op, outcome).Inc()
}
