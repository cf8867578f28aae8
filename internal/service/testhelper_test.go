package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockBillingRepository is an in-memory BillingRepository with the same
// atomicity guarantees as the SQLite implementation.
type mockBillingRepository struct {
	mu        sync.Mutex
	balances  map[string]*models.UserBalance
	txns      []*models.PointTransaction
	processed map[string]bool
	deductErr error
	creditErr error
}

func newMockBillingRepository() *mockBillingRepository {
	return &mockBillingRepository{
		balances:  make(map[string]*models.UserBalance),
		processed: make(map[string]bool),
	}
}

func (m *mockBillingRepository) setBalance(userID string, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = &models.UserBalance{UserID: userID, Balance: points, UpdatedAt: time.Now()}
}

func (m *mockBillingRepository) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBillingRepository) EnsureBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = &models.UserBalance{UserID: userID, UpdatedAt: time.Now()}
	}
	cp := *m.balances[userID]
	return &cp, nil
}

func (m *mockBillingRepository) Deduct(ctx context.Context, userID string, points int, description, metadata string, analysisID *string) (*models.DeductResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deductErr != nil {
		return nil, m.deductErr
	}
	b, ok := m.balances[userID]
	if !ok {
		return nil, errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}
	if b.Balance < points {
		return &models.DeductResult{Success: false, NewBalance: b.Balance}, nil
	}
	b.Balance -= points
	b.LifetimeSpent += points
	m.txns = append(m.txns, &models.PointTransaction{
		UserID: userID, Type: models.TxTypeDeduction, Amount: -points,
		BalanceAfter: b.Balance, AnalysisID: analysisID, Description: description, Metadata: metadata,
	})
	return &models.DeductResult{Success: true, NewBalance: b.Balance}, nil
}

func (m *mockBillingRepository) Credit(ctx context.Context, userID string, points int, description, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return m.creditErr
	}
	if orderID != "" {
		if m.processed[orderID] {
			return nil
		}
		m.processed[orderID] = true
	}
	b, ok := m.balances[userID]
	if !ok {
		return errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}
	b.Balance += points
	b.LifetimeAdded += points
	m.txns = append(m.txns, &models.PointTransaction{
		UserID: userID, Type: models.TxTypePurchase, Amount: points,
		BalanceAfter: b.Balance, Description: description,
	})
	return nil
}

func (m *mockBillingRepository) Adjust(ctx context.Context, userID string, points int, description, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orderID != "" {
		if m.processed[orderID] {
			return nil
		}
		m.processed[orderID] = true
	}
	b, ok := m.balances[userID]
	if !ok {
		return errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}
	if points < 0 && b.Balance+points < 0 {
		points = -b.Balance
	}
	b.Balance += points
	m.txns = append(m.txns, &models.PointTransaction{
		UserID: userID, Type: models.TxTypeAdjustment, Amount: points,
		BalanceAfter: b.Balance, Description: description,
	})
	return nil
}

func (m *mockBillingRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.PointTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PointTransaction
	for _, t := range m.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockInsightRepository records telemetry writes.
type mockInsightRepository struct {
	mu       sync.Mutex
	insights []*models.AnalysisInsight
}

func (m *mockInsightRepository) Create(ctx context.Context, in *models.AnalysisInsight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, in)
	return nil
}

func (m *mockInsightRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insights, nil
}

func (m *mockInsightRepository) last() *models.AnalysisInsight {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.insights) == 0 {
		return nil
	}
	return m.insights[len(m.insights)-1]
}

func newTestRepos(billing *mockBillingRepository, insight *mockInsightRepository) *repository.Repositories {
	return &repository.Repositories{Billing: billing, Insight: insight}
}
