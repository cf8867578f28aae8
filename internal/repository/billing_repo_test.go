package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/models"
)

// ========================================
// Balance Tests
// ========================================

func TestBillingRepository_GetBalanceNonExistent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	balance, err := repos.Billing.GetBalance(ctx, "non-existent-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != nil {
		t.Error("expected nil balance for non-existent user")
	}
}

func TestBillingRepository_EnsureBalance(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	balance, err := repos.Billing.EnsureBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to ensure balance: %v", err)
	}
	if balance == nil {
		t.Fatal("expected balance record to be created")
	}
	if balance.Balance != 0 {
		t.Errorf("new balance = %d, want 0", balance.Balance)
	}

	// Running again must not reset an existing balance
	if err := repos.Billing.Credit(ctx, "user-1", 50, "top up", ""); err != nil {
		t.Fatalf("failed to credit: %v", err)
	}
	balance, err = repos.Billing.EnsureBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to re-ensure balance: %v", err)
	}
	if balance.Balance != 50 {
		t.Errorf("balance after re-ensure = %d, want 50", balance.Balance)
	}
}

// ========================================
// Credit Tests
// ========================================

func TestBillingRepository_Credit(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 0)

	if err := repos.Billing.Credit(ctx, "user-1", 100, "point purchase", "order-1"); err != nil {
		t.Fatalf("failed to credit: %v", err)
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 100 {
		t.Errorf("balance = %d, want 100", balance.Balance)
	}
	if balance.LifetimeAdded != 100 {
		t.Errorf("lifetime added = %d, want 100", balance.LifetimeAdded)
	}

	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].Type != models.TxTypePurchase {
		t.Errorf("type = %s, want purchase", txns[0].Type)
	}
	if txns[0].Amount != 100 {
		t.Errorf("amount = %d, want 100", txns[0].Amount)
	}
	if txns[0].OrderID == nil || *txns[0].OrderID != "order-1" {
		t.Errorf("order ID = %v, want order-1", txns[0].OrderID)
	}
}

func TestBillingRepository_CreditMissingUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	err := repos.Billing.Credit(ctx, "no-such-user", 100, "point purchase", "")
	if !errkind.Is(err, errkind.UserNotFound) {
		t.Errorf("expected UserNotFound, got %v", err)
	}
}

func TestBillingRepository_CreditIdempotentOnOrderID(t *testing.T) {
	repos, db := setupTestReposWithDB(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 0)

	// Webhook retries replay the same order ID; only the first credits.
	for i := 0; i < 3; i++ {
		if err := repos.Billing.Credit(ctx, "user-1", 100, "point purchase", "order-X"); err != nil {
			t.Fatalf("credit attempt %d: %v", i, err)
		}
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 100 {
		t.Errorf("balance = %d, want 100 after replayed credits", balance.Balance)
	}

	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("got %d transactions, want 1", len(txns))
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM processed_orders WHERE order_id = ?`, "order-X").Scan(&orderCount); err != nil {
		t.Fatalf("failed to count processed orders: %v", err)
	}
	if orderCount != 1 {
		t.Errorf("processed order rows = %d, want 1", orderCount)
	}
}

// ========================================
// Deduct Tests
// ========================================

func TestBillingRepository_Deduct(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 100)

	analysisID := "analysis-1"
	result, err := repos.Billing.Deduct(ctx, "user-1", 30, "video analysis", `{"model":"gemini-2.5-flash"}`, &analysisID)
	if err != nil {
		t.Fatalf("failed to deduct: %v", err)
	}
	if !result.Success {
		t.Fatal("expected deduction to succeed")
	}
	if result.NewBalance != 70 {
		t.Errorf("new balance = %d, want 70", result.NewBalance)
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 70 {
		t.Errorf("stored balance = %d, want 70", balance.Balance)
	}
	if balance.LifetimeSpent != 30 {
		t.Errorf("lifetime spent = %d, want 30", balance.LifetimeSpent)
	}

	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 1, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].Type != models.TxTypeDeduction {
		t.Errorf("type = %s, want deduction", txns[0].Type)
	}
	if txns[0].Amount != -30 {
		t.Errorf("amount = %d, want -30", txns[0].Amount)
	}
	if txns[0].BalanceAfter != 70 {
		t.Errorf("balance after = %d, want 70", txns[0].BalanceAfter)
	}
	if txns[0].AnalysisID == nil || *txns[0].AnalysisID != "analysis-1" {
		t.Errorf("analysis ID = %v, want analysis-1", txns[0].AnalysisID)
	}
}

func TestBillingRepository_DeductInsufficient(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 10)

	result, err := repos.Billing.Deduct(ctx, "user-1", 30, "video analysis", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected deduction to be refused")
	}
	if result.NewBalance != 10 {
		t.Errorf("reported balance = %d, want untouched 10", result.NewBalance)
	}

	// No transaction row for a refused deduction
	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(txns) != 1 { // only the setup credit
		t.Errorf("got %d transactions, want 1", len(txns))
	}
}

func TestBillingRepository_DeductMissingUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	_, err := repos.Billing.Deduct(ctx, "no-such-user", 10, "video analysis", "", nil)
	if !errkind.Is(err, errkind.UserNotFound) {
		t.Errorf("expected UserNotFound, got %v", err)
	}
}

func TestBillingRepository_DeductConcurrentNoDoubleSpend(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 100)

	// Race several full-balance deductions; the in-transaction balance
	// guard must let exactly one through.
	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := repos.Billing.Deduct(ctx, "user-1", 100, "video analysis", "", nil)
			if err != nil {
				t.Errorf("deduct error: %v", err)
				return
			}
			if result.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful deductions = %d, want exactly 1", successes)
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 0 {
		t.Errorf("final balance = %d, want 0", balance.Balance)
	}
}

// ========================================
// Adjustment Tests
// ========================================

func TestBillingRepository_AdjustRefund(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 100)

	if err := repos.Billing.Adjust(ctx, "user-1", -40, "refund", "charge-1"); err != nil {
		t.Fatalf("failed to adjust: %v", err)
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 60 {
		t.Errorf("balance = %d, want 60", balance.Balance)
	}

	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	var adjustment *models.PointTransaction
	for _, tx := range txns {
		if tx.Type == models.TxTypeAdjustment {
			adjustment = tx
		}
	}
	if adjustment == nil {
		t.Fatal("expected an adjustment transaction")
	}
	if adjustment.Amount != -40 {
		t.Errorf("adjustment amount = %d, want -40", adjustment.Amount)
	}
	if adjustment.OrderID == nil || *adjustment.OrderID != "charge-1" {
		t.Errorf("order ID = %v, want charge-1", adjustment.OrderID)
	}
}

func TestBillingRepository_AdjustRefundClampsAtZero(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	// Credit 100, spend 80, then refund the full 100: only the remaining
	// 20 can come back out.
	creditTestUser(t, repos, "user-1", 100)
	if _, err := repos.Billing.Deduct(ctx, "user-1", 80, "video analysis", "", nil); err != nil {
		t.Fatalf("failed to deduct: %v", err)
	}
	if err := repos.Billing.Adjust(ctx, "user-1", -100, "refund", "charge-1"); err != nil {
		t.Fatalf("failed to adjust: %v", err)
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 0 {
		t.Errorf("balance = %d, want 0", balance.Balance)
	}

	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	for _, tx := range txns {
		if tx.Type == models.TxTypeAdjustment && tx.Amount != -20 {
			t.Errorf("adjustment amount = %d, want clamped -20", tx.Amount)
		}
	}
}

func TestBillingRepository_AdjustIdempotentOnOrderID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 100)

	for i := 0; i < 3; i++ {
		if err := repos.Billing.Adjust(ctx, "user-1", -30, "refund", "charge-X"); err != nil {
			t.Fatalf("adjust attempt %d: %v", i, err)
		}
	}

	balance, err := repos.Billing.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if balance.Balance != 70 {
		t.Errorf("balance = %d, want 70 after replayed refunds", balance.Balance)
	}
}

// ========================================
// Transaction Listing Tests
// ========================================

func TestBillingRepository_ListTransactions(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	creditTestUser(t, repos, "user-1", 500)

	for i := 0; i < 4; i++ {
		analysisID := "analysis-" + string(rune('a'+i))
		if _, err := repos.Billing.Deduct(ctx, "user-1", 10, "link analysis", `{"mode":"standard"}`, &analysisID); err != nil {
			t.Fatalf("failed to deduct %d: %v", i, err)
		}
	}

	// 1 credit + 4 deductions
	txns, err := repos.Billing.ListTransactions(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(txns) != 5 {
		t.Fatalf("got %d transactions, want 5", len(txns))
	}

	// Every column round-trips, description and metadata included
	deductions := 0
	for _, tx := range txns {
		if tx.Type != models.TxTypeDeduction {
			continue
		}
		deductions++
		if tx.Description != "link analysis" {
			t.Errorf("description = %q, want %q", tx.Description, "link analysis")
		}
		if tx.Metadata != `{"mode":"standard"}` {
			t.Errorf("metadata = %q", tx.Metadata)
		}
	}
	if deductions != 4 {
		t.Errorf("got %d deductions, want 4", deductions)
	}

	// Pagination
	page, err := repos.Billing.ListTransactions(ctx, "user-1", 2, 0)
	if err != nil {
		t.Fatalf("failed to list first page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("first page = %d transactions, want 2", len(page))
	}

	page, err = repos.Billing.ListTransactions(ctx, "user-1", 10, 3)
	if err != nil {
		t.Fatalf("failed to list with offset: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("offset page = %d transactions, want 2", len(page))
	}

	// Isolation between users
	other, err := repos.Billing.ListTransactions(ctx, "user-2", 10, 0)
	if err != nil {
		t.Fatalf("failed to list for other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user sees %d transactions, want 0", len(other))
	}
}
