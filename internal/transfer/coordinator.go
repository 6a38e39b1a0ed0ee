// Package transfer coordinates the two-step commercial operations: a
// proposal is validated and priced, an external party confirms it within
// a deadline, and only then does the ledger mutate. Proposals are
// in-memory; a crash before commit simply loses them, never coins.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hoard/internal/catalog"
	"hoard/internal/ledger"
)

var (
	ErrInvalidItem       = errors.New("no such item")
	ErrItemNotBuyable    = errors.New("item is not buyable")
	ErrItemNotSellable   = errors.New("item is not sellable")
	ErrMarketUnavailable = errors.New("market price is below the minimum buy threshold")
	ErrProposalExpired   = errors.New("proposal expired or unknown")
	ErrProposalDeclined  = errors.New("proposal declined")
)

// Kind names the commercial operation a proposal will perform.
type Kind string

const (
	KindBuy      Kind = "buy"
	KindSell     Kind = "sell"
	KindPayCoins Kind = "pay_coins"
	KindPayItem  Kind = "pay_item"
)

// Ledger is the slice of the store the coordinator needs. The concrete
// *ledger.Service satisfies it; tests substitute a fake.
type Ledger interface {
	GetBalance(ctx context.Context, account string) (wallet, bank int64, err error)
	GetItemQuantity(ctx context.Context, account, itemID string) (int64, error)
	StockPrice(ctx context.Context) (int64, error)
	PurchaseItem(ctx context.Context, account, itemID string, qty, unitPrice int64) error
	SellItem(ctx context.Context, account, itemID string, qty, unitPrice int64) error
	TransferCoins(ctx context.Context, from, to string, amount int64, label string) error
	TransferItem(ctx context.Context, from, to, itemID string, qty int64) error
}

// Proposal is a priced, not-yet-committed operation. UnitPrice is pinned
// at propose time; the commit uses it even if the market has moved.
type Proposal struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Account   string    `json:"account"`
	To        string    `json:"to,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Quantity  int64     `json:"quantity,omitempty"`
	UnitPrice int64     `json:"unit_price,omitempty"`
	Total     int64     `json:"total"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Config struct {
	// TTL is how long a proposal waits for confirmation.
	TTL time.Duration
	// MinBuyPrice blocks dynamic-instrument buys while the price is below
	// it, the post-wipe accumulation guard.
	MinBuyPrice int64
}

type Coordinator struct {
	store Ledger
	cfg   Config
	log   *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]Proposal
	now     func() time.Time
}

func NewCoordinator(store Ledger, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		cfg:     cfg,
		log:     logger,
		pending: make(map[uuid.UUID]Proposal),
		now:     time.Now,
	}
}

// unitPrice resolves an item's price, reading market state for the
// dynamic instrument.
func (c *Coordinator) unitPrice(ctx context.Context, it catalog.Item) (int64, error) {
	if !it.Dynamic {
		return it.Price, nil
	}
	return c.store.StockPrice(ctx)
}

// ProposeBuy validates and prices a purchase without mutating anything.
func (c *Coordinator) ProposeBuy(ctx context.Context, account, itemID string, qty int64) (Proposal, error) {
	if qty <= 0 {
		return Proposal{}, ledger.ErrInvalidAmount
	}
	it, ok := catalog.ItemByID(itemID)
	if !ok {
		return Proposal{}, ErrInvalidItem
	}
	if !it.Buyable {
		return Proposal{}, ErrItemNotBuyable
	}
	price, err := c.unitPrice(ctx, it)
	if err != nil {
		return Proposal{}, err
	}
	if it.Dynamic && price < c.cfg.MinBuyPrice {
		return Proposal{}, ErrMarketUnavailable
	}
	total, err := ledger.TotalPrice(price, qty)
	if err != nil {
		return Proposal{}, err
	}
	wallet, _, err := c.store.GetBalance(ctx, account)
	if err != nil {
		return Proposal{}, err
	}
	if wallet < total {
		return Proposal{}, ledger.ErrInsufficientFunds
	}
	return c.admit(Proposal{
		Kind: KindBuy, Account: account,
		ItemID: itemID, Quantity: qty, UnitPrice: price, Total: total,
	}), nil
}

// ProposeSell validates and prices a sale.
func (c *Coordinator) ProposeSell(ctx context.Context, account, itemID string, qty int64) (Proposal, error) {
	if qty <= 0 {
		return Proposal{}, ledger.ErrInvalidAmount
	}
	it, ok := catalog.ItemByID(itemID)
	if !ok {
		return Proposal{}, ErrInvalidItem
	}
	if !it.Sellable {
		return Proposal{}, ErrItemNotSellable
	}
	held, err := c.store.GetItemQuantity(ctx, account, itemID)
	if err != nil {
		return Proposal{}, err
	}
	if held < qty {
		return Proposal{}, ledger.ErrInsufficientItems
	}
	price, err := c.unitPrice(ctx, it)
	if err != nil {
		return Proposal{}, err
	}
	total, err := ledger.TotalPrice(price, qty)
	if err != nil {
		return Proposal{}, err
	}
	return c.admit(Proposal{
		Kind: KindSell, Account: account,
		ItemID: itemID, Quantity: qty, UnitPrice: price, Total: total,
	}), nil
}

// ProposePayCoins validates a wallet-to-wallet payment.
func (c *Coordinator) ProposePayCoins(ctx context.Context, from, to string, amount int64) (Proposal, error) {
	if amount <= 0 {
		return Proposal{}, ledger.ErrInvalidAmount
	}
	if from == to {
		return Proposal{}, ledger.ErrSameAccount
	}
	wallet, _, err := c.store.GetBalance(ctx, from)
	if err != nil {
		return Proposal{}, err
	}
	if wallet < amount {
		return Proposal{}, ledger.ErrInsufficientFunds
	}
	return c.admit(Proposal{
		Kind: KindPayCoins, Account: from, To: to, Total: amount,
	}), nil
}

// ProposePayItem validates an item gift.
func (c *Coordinator) ProposePayItem(ctx context.Context, from, to, itemID string, qty int64) (Proposal, error) {
	if qty <= 0 {
		return Proposal{}, ledger.ErrInvalidAmount
	}
	if from == to {
		return Proposal{}, ledger.ErrSameAccount
	}
	if _, ok := catalog.ItemByID(itemID); !ok {
		return Proposal{}, ErrInvalidItem
	}
	held, err := c.store.GetItemQuantity(ctx, from, itemID)
	if err != nil {
		return Proposal{}, err
	}
	if held < qty {
		return Proposal{}, ledger.ErrInsufficientItems
	}
	return c.admit(Proposal{
		Kind: KindPayItem, Account: from, To: to, ItemID: itemID, Quantity: qty,
	}), nil
}

func (c *Coordinator) admit(p Proposal) Proposal {
	p.ID = uuid.New()
	p.ExpiresAt = c.now().Add(c.cfg.TTL)
	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
	return p
}

// take consumes the proposal if it exists and has not expired. At most
// one caller ever receives a given proposal.
func (c *Coordinator) take(id uuid.UUID) (Proposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return Proposal{}, false
	}
	delete(c.pending, id)
	if c.now().After(p.ExpiresAt) {
		return Proposal{}, false
	}
	return p, true
}

// Confirm resolves a proposal. accept=false consumes it and returns
// ErrProposalDeclined; accept=true commits through the ledger, which
// re-validates balances and holdings inside its own transaction. A stale
// precondition surfaces as the ledger's sentinel and nothing mutates.
func (c *Coordinator) Confirm(ctx context.Context, id uuid.UUID, accept bool) (Proposal, error) {
	p, ok := c.take(id)
	if !ok {
		return Proposal{}, ErrProposalExpired
	}
	if !accept {
		return p, ErrProposalDeclined
	}
	var err error
	switch p.Kind {
	case KindBuy:
		err = c.store.PurchaseItem(ctx, p.Account, p.ItemID, p.Quantity, p.UnitPrice)
	case KindSell:
		err = c.store.SellItem(ctx, p.Account, p.ItemID, p.Quantity, p.UnitPrice)
	case KindPayCoins:
		err = c.store.TransferCoins(ctx, p.Account, p.To, p.Total, "pay")
	case KindPayItem:
		err = c.store.TransferItem(ctx, p.Account, p.To, p.ItemID, p.Quantity)
	default:
		err = fmt.Errorf("unknown proposal kind %q", p.Kind)
	}
	if err != nil {
		return p, err
	}
	c.log.Info("proposal committed", "id", p.ID, "kind", p.Kind, "account", p.Account)
	return p, nil
}

// RunSweeper drops expired proposals on a fixed cadence until ctx is
// cancelled. Every long-running front-end starts this once; without it,
// proposals nobody ever answers sit in memory for the life of the
// process.
func (c *Coordinator) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = c.cfg.TTL
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Info("swept expired proposals", "count", n)
			}
		}
	}
}

// Sweep drops expired proposals and reports how many were removed.
// Expiry is also enforced lazily on Confirm, so sweeping is hygiene, not
// correctness.
func (c *Coordinator) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, p := range c.pending {
		if now.After(p.ExpiresAt) {
			delete(c.pending, id)
			removed++
		}
	}
	return removed
}
