package transfer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"hoard/internal/ledger"
)

// fakeLedger is an in-memory stand-in with the same precondition
// semantics as the real store: commits re-validate and fail atomically.
type fakeLedger struct {
	mu      sync.Mutex
	wallets map[string]int64
	items   map[string]map[string]int64
	price   int64

	purchases int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		wallets: make(map[string]int64),
		items:   make(map[string]map[string]int64),
		price:   100_000,
	}
}

func (f *fakeLedger) GetBalance(_ context.Context, account string) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[account], 0, nil
}

func (f *fakeLedger) GetItemQuantity(_ context.Context, account, itemID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[account][itemID], nil
}

func (f *fakeLedger) StockPrice(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

func (f *fakeLedger) addItem(account, itemID string, qty int64) {
	if f.items[account] == nil {
		f.items[account] = make(map[string]int64)
	}
	f.items[account][itemID] += qty
}

func (f *fakeLedger) PurchaseItem(_ context.Context, account, itemID string, qty, unitPrice int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := unitPrice * qty
	if f.wallets[account] < total {
		return ledger.ErrInsufficientFunds
	}
	f.wallets[account] -= total
	f.addItem(account, itemID, qty)
	f.purchases++
	return nil
}

func (f *fakeLedger) SellItem(_ context.Context, account, itemID string, qty, unitPrice int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[account][itemID] < qty {
		return ledger.ErrInsufficientItems
	}
	f.items[account][itemID] -= qty
	f.wallets[account] += unitPrice * qty
	return nil
}

func (f *fakeLedger) TransferCoins(_ context.Context, from, to string, amount int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wallets[from] < amount {
		return ledger.ErrInsufficientFunds
	}
	f.wallets[from] -= amount
	f.wallets[to] += amount
	return nil
}

func (f *fakeLedger) TransferItem(_ context.Context, from, to, itemID string, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[from][itemID] < qty {
		return ledger.ErrInsufficientItems
	}
	f.items[from][itemID] -= qty
	f.addItem(to, itemID, qty)
	return nil
}

func newTestCoordinator(store Ledger) *Coordinator {
	return NewCoordinator(store, Config{TTL: 30 * time.Second, MinBuyPrice: 10_000}, nil)
}

func TestBuyHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 50_000
	c := newTestCoordinator(store)

	p, err := c.ProposeBuy(ctx, "alice", "beard", 2)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.Total != 20_000 || p.UnitPrice != 10_000 {
		t.Fatalf("pricing wrong: %+v", p)
	}
	if store.wallets["alice"] != 50_000 {
		t.Fatalf("propose must not mutate")
	}

	if _, err := c.Confirm(ctx, p.ID, true); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if store.wallets["alice"] != 30_000 || store.items["alice"]["beard"] != 2 {
		t.Fatalf("commit not applied: wallet=%d items=%v", store.wallets["alice"], store.items["alice"])
	}
}

func TestBuyValidation(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 1_000_000_000
	c := newTestCoordinator(store)

	if _, err := c.ProposeBuy(ctx, "alice", "nosuch", 1); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("want ErrInvalidItem, got %v", err)
	}
	if _, err := c.ProposeBuy(ctx, "alice", "bone", 1); !errors.Is(err, ErrItemNotBuyable) {
		t.Fatalf("want ErrItemNotBuyable, got %v", err)
	}
	if _, err := c.ProposeBuy(ctx, "alice", "beard", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	if _, err := c.ProposeBuy(ctx, "poor", "beard", 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
}

func TestBuyPinsDynamicPriceAndMinThreshold(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 1_000_000
	c := newTestCoordinator(store)

	store.price = 9_999
	if _, err := c.ProposeBuy(ctx, "alice", "stock", 1); !errors.Is(err, ErrMarketUnavailable) {
		t.Fatalf("below-threshold buy must fail, got %v", err)
	}

	store.price = 200_000
	p, err := c.ProposeBuy(ctx, "alice", "stock", 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Price moves after propose; the commit still uses the pinned price.
	store.price = 999_999
	if _, err := c.Confirm(ctx, p.ID, true); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if store.wallets["alice"] != 800_000 {
		t.Fatalf("commit must use pinned price, wallet=%d", store.wallets["alice"])
	}
}

func TestConfirmDecline(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 50_000
	c := newTestCoordinator(store)

	p, _ := c.ProposeBuy(ctx, "alice", "beard", 1)
	if _, err := c.Confirm(ctx, p.ID, false); !errors.Is(err, ErrProposalDeclined) {
		t.Fatalf("want ErrProposalDeclined, got %v", err)
	}
	if store.wallets["alice"] != 50_000 {
		t.Fatalf("decline must not mutate")
	}
	// Declined proposals are consumed.
	if _, err := c.Confirm(ctx, p.ID, true); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("consumed proposal must be gone, got %v", err)
	}
}

func TestConfirmExpiry(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 50_000
	c := newTestCoordinator(store)

	now := time.Now()
	c.now = func() time.Time { return now }
	p, _ := c.ProposeBuy(ctx, "alice", "beard", 1)

	now = now.Add(31 * time.Second)
	if _, err := c.Confirm(ctx, p.ID, true); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("want ErrProposalExpired, got %v", err)
	}
	if _, err := c.Confirm(ctx, uuid.New(), true); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("unknown id must read as expired, got %v", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 500_000
	c := newTestCoordinator(store)

	now := time.Now()
	c.now = func() time.Time { return now }
	old, _ := c.ProposeBuy(ctx, "alice", "beard", 1)

	now = now.Add(20 * time.Second)
	fresh, _ := c.ProposeBuy(ctx, "alice", "beard", 1)

	now = now.Add(15 * time.Second) // old is past TTL, fresh is not
	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if _, err := c.Confirm(ctx, old.ID, true); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("swept proposal must be gone, got %v", err)
	}
	if _, err := c.Confirm(ctx, fresh.ID, true); err != nil {
		t.Fatalf("fresh proposal must still commit, got %v", err)
	}
}

func pendingCount(c *Coordinator) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func TestAbandonedProposalsAreSwept(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 1_000_000
	c := newTestCoordinator(store)

	now := time.Now()
	c.now = func() time.Time { return now }
	for i := 0; i < 100; i++ {
		if _, err := c.ProposeBuy(ctx, "alice", "beard", 1); err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
	}
	if got := pendingCount(c); got != 100 {
		t.Fatalf("pending = %d, want 100", got)
	}

	// Nobody ever answers. Expiry alone must not leak: a sweep after the
	// TTL clears every abandoned proposal.
	now = now.Add(10 * time.Minute)
	if removed := c.Sweep(); removed != 100 {
		t.Fatalf("sweep removed %d, want 100", removed)
	}
	if got := pendingCount(c); got != 0 {
		t.Fatalf("pending = %d after sweep, want 0", got)
	}
}

func TestRunSweeperDrainsAbandonedProposals(t *testing.T) {
	store := newFakeLedger()
	store.wallets["alice"] = 1_000_000
	c := newTestCoordinator(store)

	now := time.Now()
	c.now = func() time.Time { return now }
	for i := 0; i < 10; i++ {
		if _, err := c.ProposeBuy(context.Background(), "alice", "beard", 1); err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
	}
	now = now.Add(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.RunSweeper(ctx, time.Millisecond)
	}()

	deadline := time.After(5 * time.Second)
	for pendingCount(c) != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper left %d proposals pending", pendingCount(c))
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestProposeRejectsOverflowingTotal(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 1 // a negative "total" would sail past this
	store.addItem("alice", "bone", math.MaxInt64)
	c := newTestCoordinator(store)

	if _, err := c.ProposeBuy(ctx, "alice", "beard", math.MaxInt64/2); !errors.Is(err, ledger.ErrAmountOverflow) {
		t.Fatalf("overflowing buy must fail at propose, got %v", err)
	}
	if got := pendingCount(c); got != 0 {
		t.Fatalf("overflowing buy admitted a proposal, pending = %d", got)
	}

	if _, err := c.ProposeSell(ctx, "alice", "bone", math.MaxInt64/2); !errors.Is(err, ledger.ErrAmountOverflow) {
		t.Fatalf("overflowing sell must fail at propose, got %v", err)
	}
	if got := pendingCount(c); got != 0 {
		t.Fatalf("overflowing sell admitted a proposal, pending = %d", got)
	}
}

func TestCommitRevalidatesBalance(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 10_000
	c := newTestCoordinator(store)

	p, err := c.ProposeBuy(ctx, "alice", "beard", 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	// The wallet drains between propose and confirm.
	store.wallets["alice"] = 0
	if _, err := c.Confirm(ctx, p.ID, true); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("stale proposal must fail at commit, got %v", err)
	}
	if store.items["alice"]["beard"] != 0 {
		t.Fatalf("failed commit must not grant items")
	}
}

func TestConcurrentConfirmCommitsOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 10_000
	c := newTestCoordinator(store)

	p, err := c.ProposeBuy(ctx, "alice", "beard", 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	const n = 16
	errs := make(chan error, n)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < n; i++ {
		go func() {
			start.Wait()
			_, err := c.Confirm(ctx, p.ID, true)
			errs <- err
		}()
	}
	start.Done()

	var committed int
	for i := 0; i < n; i++ {
		if err := <-errs; err == nil {
			committed++
		} else if !errors.Is(err, ErrProposalExpired) {
			t.Fatalf("unexpected confirm error: %v", err)
		}
	}
	if committed != 1 {
		t.Fatalf("exactly one confirm must commit, got %d", committed)
	}
	if store.purchases != 1 || store.wallets["alice"] != 0 {
		t.Fatalf("double spend: purchases=%d wallet=%d", store.purchases, store.wallets["alice"])
	}
}

func TestSellAndPayFlows(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	store.wallets["alice"] = 5_000
	store.addItem("alice", "bone", 3)
	c := newTestCoordinator(store)

	p, err := c.ProposeSell(ctx, "alice", "bone", 2)
	if err != nil {
		t.Fatalf("propose sell: %v", err)
	}
	if _, err := c.Confirm(ctx, p.ID, true); err != nil {
		t.Fatalf("confirm sell: %v", err)
	}
	if store.wallets["alice"] != 15_000 || store.items["alice"]["bone"] != 1 {
		t.Fatalf("sell not applied: wallet=%d items=%v", store.wallets["alice"], store.items["alice"])
	}

	if _, err := c.ProposeSell(ctx, "alice", "bone", 5); !errors.Is(err, ledger.ErrInsufficientItems) {
		t.Fatalf("oversell must fail, got %v", err)
	}
	if _, err := c.ProposeSell(ctx, "alice", "stock", 1); !errors.Is(err, ledger.ErrInsufficientItems) {
		t.Fatalf("selling unheld stock must fail, got %v", err)
	}

	p, err = c.ProposePayCoins(ctx, "alice", "bob", 10_000)
	if err != nil {
		t.Fatalf("propose pay: %v", err)
	}
	if _, err := c.Confirm(ctx, p.ID, true); err != nil {
		t.Fatalf("confirm pay: %v", err)
	}
	if store.wallets["alice"] != 5_000 || store.wallets["bob"] != 10_000 {
		t.Fatalf("pay not applied: %v", store.wallets)
	}
	if _, err := c.ProposePayCoins(ctx, "alice", "alice", 100); !errors.Is(err, ledger.ErrSameAccount) {
		t.Fatalf("self-pay must fail, got %v", err)
	}

	p, err = c.ProposePayItem(ctx, "alice", "bob", "bone", 1)
	if err != nil {
		t.Fatalf("propose pay item: %v", err)
	}
	if _, err := c.Confirm(ctx, p.ID, true); err != nil {
		t.Fatalf("confirm pay item: %v", err)
	}
	if store.items["alice"]["bone"] != 0 || store.items["bob"]["bone"] != 1 {
		t.Fatalf("item gift not applied: %v", store.items)
	}
}
