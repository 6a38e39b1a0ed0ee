package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransferCoins moves wallet coins between two accounts. Both rows are
// locked in account-id order so opposite-direction transfers cannot
// deadlock; the debit and credit share one journal group.
func (s *Service) TransferCoins(ctx context.Context, from, to string, amount int64, label string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		first, second := sortedPair(from, to)
		if _, _, err := lockAccountTx(ctx, tx, first); err != nil {
			return err
		}
		if _, _, err := lockAccountTx(ctx, tx, second); err != nil {
			return err
		}
		if _, err := adjustBalanceTx(ctx, tx, from, PocketWallet, -amount); err != nil {
			return err
		}
		if _, err := adjustBalanceTx(ctx, tx, to, PocketWallet, amount); err != nil {
			return err
		}
		groupID := uuid.New()
		if err := appendJournalTx(ctx, tx, groupID, from, label, -amount); err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, groupID, to, label, amount)
	})
}

// TransferItem moves an item stack between two accounts under the same
// ordered locking. No balances change, so nothing is journaled.
func (s *Service) TransferItem(ctx context.Context, from, to, itemID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		first, second := sortedPair(from, to)
		if _, _, err := lockAccountTx(ctx, tx, first); err != nil {
			return err
		}
		if _, _, err := lockAccountTx(ctx, tx, second); err != nil {
			return err
		}
		if err := adjustItemTx(ctx, tx, from, itemID, -qty); err != nil {
			return err
		}
		return adjustItemTx(ctx, tx, to, itemID, qty)
	})
}

// PurchaseItem debits the wallet and credits the inventory atomically,
// re-validating the balance inside a serializable transaction. The unit
// price is the caller's pinned price, not a fresh read.
func (s *Service) PurchaseItem(ctx context.Context, account, itemID string, qty, unitPrice int64) error {
	if qty <= 0 || unitPrice < 0 {
		return ErrInvalidAmount
	}
	total, err := TotalPrice(unitPrice, qty)
	if err != nil {
		return err
	}
	return s.withSerializableRetry(ctx, func(tx pgx.Tx) error {
		if _, err := adjustBalanceTx(ctx, tx, account, PocketWallet, -total); err != nil {
			return err
		}
		if err := adjustItemTx(ctx, tx, account, itemID, qty); err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, uuid.New(), account, "buy:"+itemID, -total)
	})
}

// SellItem is the inverse: inventory debit, wallet credit, one journal row.
func (s *Service) SellItem(ctx context.Context, account, itemID string, qty, unitPrice int64) error {
	if qty <= 0 || unitPrice < 0 {
		return ErrInvalidAmount
	}
	total, err := TotalPrice(unitPrice, qty)
	if err != nil {
		return err
	}
	return s.withSerializableRetry(ctx, func(tx pgx.Tx) error {
		if err := adjustItemTx(ctx, tx, account, itemID, -qty); err != nil {
			return err
		}
		if _, err := adjustBalanceTx(ctx, tx, account, PocketWallet, total); err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, uuid.New(), account, "sell:"+itemID, total)
	})
}
