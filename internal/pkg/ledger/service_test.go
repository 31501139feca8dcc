package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/app/models"
)

// fakeRepository mimics the storage contract: mutations are atomic per
// wallet and the reference unique index decides replay races.
type fakeRepository struct {
	mu       sync.Mutex
	balances map[uint]int64
	entries  map[string]*models.LedgerEntry
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		balances: make(map[uint]int64),
		entries:  make(map[string]*models.LedgerEntry),
	}
}

func (f *fakeRepository) FindEntryByReference(reference string) (*models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.entries[reference]; ok {
		cp := *entry
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ApplyCredit(userID uint, amount int64, reason, reference string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[reference]; ok {
		return 0, gorm.ErrDuplicatedKey
	}
	f.balances[userID] += amount
	f.entries[reference] = &models.LedgerEntry{
		Reference: reference, UserID: userID, Delta: amount,
		Reason: reason, BalanceAfter: f.balances[userID],
	}
	return f.balances[userID], nil
}

func (f *fakeRepository) ApplyDebit(userID uint, amount int64, reason, reference string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[reference]; ok {
		return 0, gorm.ErrDuplicatedKey
	}
	if f.balances[userID] < amount {
		return 0, ErrInsufficientFunds
	}
	f.balances[userID] -= amount
	f.entries[reference] = &models.LedgerEntry{
		Reference: reference, UserID: userID, Delta: -amount,
		Reason: reason, BalanceAfter: f.balances[userID],
	}
	return f.balances[userID], nil
}

func (f *fakeRepository) GetBalance(userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 10, "topup", "topup-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, 12, "generation", "gen-1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestCreditIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Credit(ctx, 1, 50, "topup", "payment:evt_1")
	require.NoError(t, err)

	second, err := svc.Credit(ctx, 1, 50, "topup", "payment:evt_1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	balance, _ := svc.Balance(ctx, 1)
	assert.Equal(t, int64(50), balance)
	assert.Len(t, repo.entries, 1)
}

func TestDebitIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, "topup", "topup-1")
	require.NoError(t, err)

	first, err := svc.Debit(ctx, 1, 30, "generation:t2v", "generation:job-1")
	require.NoError(t, err)

	second, err := svc.Debit(ctx, 1, 30, "generation:t2v", "generation:job-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	balance, _ := svc.Balance(ctx, 1)
	assert.Equal(t, int64(70), balance)
}

func TestInvalidAmount(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		_, err := svc.Credit(ctx, 1, amount, "topup", "ref")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = svc.Debit(ctx, 1, amount, "generation", "ref")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestConcurrentDebitsNoDoubleSpend(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, "topup", "topup-1")
	require.NoError(t, err)

	const workers = 10
	const amount = 30

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Debit(ctx, 1, amount, "generation", fmt.Sprintf("generation:job-%d", i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}

	// floor(100/30) debits may succeed, the rest must fail cleanly.
	assert.Equal(t, 3, succeeded)
	balance, _ := svc.Balance(ctx, 1)
	assert.Equal(t, int64(10), balance)
}

func TestConcurrentReplaysSameReference(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, "topup", "topup-1")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	balances := make([]int64, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			balances[i], errs[i] = svc.Debit(ctx, 1, 40, "generation", "generation:job-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(60), balances[i])
	}
	assert.Len(t, repo.entries, 2)
}
