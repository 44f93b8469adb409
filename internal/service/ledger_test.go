package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

// memUserStore is an in-memory UserStore. A single mutex serializes every
// method, matching the per-user atomicity the real store provides.
type memUserStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.UserAccount
	now      func() time.Time
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		accounts: make(map[int64]*models.UserAccount),
		now:      time.Now,
	}
}

func (s *memUserStore) ensure(userID int64) *models.UserAccount {
	acc, ok := s.accounts[userID]
	if !ok {
		acc = &models.UserAccount{UserID: userID}
		s.accounts[userID] = acc
	}
	return acc
}

func (s *memUserStore) AddPoints(_ context.Context, userID int64, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensure(userID)
	acc.Balance += delta
	return acc.Balance, nil
}

func (s *memUserStore) UpdateProfile(_ context.Context, userID int64, username, fullName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensure(userID)
	acc.Username = username
	acc.FullName = fullName
	return nil
}

func (s *memUserStore) GetPoints(_ context.Context, userID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return 0, nil
	}
	return acc.Balance, nil
}

func (s *memUserStore) ClaimBonus(_ context.Context, userID int64, amount float64, cooldown time.Duration) (bool, time.Duration, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensure(userID)
	now := s.now()
	if acc.LastBonusClaim != nil {
		elapsed := now.Sub(*acc.LastBonusClaim)
		if elapsed < cooldown {
			return false, cooldown - elapsed, acc.Balance, nil
		}
	}
	acc.Balance += amount
	claimed := now
	acc.LastBonusClaim = &claimed
	return true, 0, acc.Balance, nil
}

func (s *memUserStore) CreditReferrer(_ context.Context, referrerID int64, bonus float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensure(referrerID)
	acc.Balance += bonus
	acc.ReferralCount++
	return acc.Balance, nil
}

func (s *memUserStore) GetAccount(_ context.Context, userID int64) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	copied := *acc
	return &copied, nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := strings.ToLower(strings.TrimPrefix(username, "@"))
	for _, acc := range s.accounts {
		if strings.ToLower(acc.Username) == want {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *memUserStore) TopByBalance(_ context.Context, limit int) ([]models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserAccount
	for _, acc := range s.accounts {
		out = append(out, *acc)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Balance > out[i].Balance {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestLedger(store *memUserStore) *PointsLedger {
	return NewPointsLedger(store, nil, 20, 12*time.Hour, zap.NewNop())
}

func TestAddPointsConcurrentNoLostUpdates(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	ledger := newTestLedger(store)

	const workers = 40
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := ledger.AddPoints(ctx, 7, 1)
				require.NoError(err)
			}
		}()
	}
	wg.Wait()

	balance, err := ledger.GetPoints(ctx, 7)
	require.NoError(err)
	require.InDelta(float64(workers*perWorker), balance, 1e-9)
}

func TestGetPointsUnknownUserIsZero(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(newMemUserStore())
	balance, err := ledger.GetPoints(context.Background(), 999)
	require.NoError(err)
	require.Zero(balance)
}

func TestClaimBonusRespectsCooldown(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	ledger := newTestLedger(store)

	first, err := ledger.ClaimBonus(ctx, 42)
	require.NoError(err)
	require.True(first.Granted)
	require.InDelta(20.0, first.Amount, 1e-9)
	require.InDelta(20.0, first.NewBalance, 1e-9)

	second, err := ledger.ClaimBonus(ctx, 42)
	require.NoError(err)
	require.False(second.Granted)
	require.Greater(second.Remaining, time.Duration(0))
	require.InDelta(20.0, second.NewBalance, 1e-9)

	// Second call must not have touched the balance.
	balance, err := ledger.GetPoints(ctx, 42)
	require.NoError(err)
	require.InDelta(20.0, balance, 1e-9)
}

func TestClaimBonusGrantsAgainAfterCooldown(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	ledger := newTestLedger(store)

	base := time.Now()
	store.now = func() time.Time { return base }
	first, err := ledger.ClaimBonus(ctx, 42)
	require.NoError(err)
	require.True(first.Granted)

	store.now = func() time.Time { return base.Add(13 * time.Hour) }
	second, err := ledger.ClaimBonus(ctx, 42)
	require.NoError(err)
	require.True(second.Granted)
	require.InDelta(40.0, second.NewBalance, 1e-9)
}

func TestAdjustByUsername(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	ledger := newTestLedger(store)

	require.NoError(ledger.TouchProfile(ctx, 55, "Feruzbek", "Feruzbek A."))

	acc, balance, err := ledger.AdjustByUsername(ctx, "@feruzbek", 10)
	require.NoError(err)
	require.Equal(int64(55), acc.UserID)
	require.InDelta(10.0, balance, 1e-9)

	_, _, err = ledger.AdjustByUsername(ctx, "nobody", 10)
	require.ErrorIs(err, models.ErrUserNotFound)
}

func TestAccountSubstitutesEmpty(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(newMemUserStore())
	acc, err := ledger.Account(context.Background(), 321)
	require.NoError(err)
	require.Equal(int64(321), acc.UserID)
	require.Zero(acc.Balance)
}
