package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hoard/internal/catalog"
)

// GetBalance returns the wallet and bank balances, materializing the
// account on first reference.
func (s *Service) GetBalance(ctx context.Context, account string) (wallet, bank int64, err error) {
	if err := s.Materialize(ctx, account); err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRow(ctx, `
		SELECT wallet, bank FROM accounts WHERE account_id = $1
	`, account).Scan(&wallet, &bank)
	return wallet, bank, err
}

func adjustBalanceTx(ctx context.Context, tx pgx.Tx, account string, pocket Pocket, delta int64) (int64, error) {
	col, err := pocket.column()
	if err != nil {
		return 0, err
	}
	wallet, bank, err := lockAccountTx(ctx, tx, account)
	if err != nil {
		return 0, err
	}
	current := wallet
	if pocket == PocketBank {
		current = bank
	}
	next := current + delta
	if next < 0 {
		return 0, ErrInsufficientFunds
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE accounts SET %s = $2, updated_at = now() WHERE account_id = $1
	`, col), account, next)
	return next, err
}

// AdjustBalance applies a signed delta to one pocket and records it in the
// journal. Debits that would go negative fail with ErrInsufficientFunds
// and leave no trace.
func (s *Service) AdjustBalance(ctx context.Context, account string, pocket Pocket, delta int64, label string) (int64, error) {
	var next int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		next, err = adjustBalanceTx(ctx, tx, account, pocket, delta)
		if err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, uuid.New(), account, label, delta)
	})
	return next, err
}

// Deposit moves coins from the wallet to the bank. Both journal rows share
// one group id so the movement reads as a single event.
func (s *Service) Deposit(ctx context.Context, account string, amount int64) error {
	return s.moveBetweenPockets(ctx, account, amount, PocketWallet, PocketBank, "deposit")
}

// Withdraw moves coins from the bank to the wallet.
func (s *Service) Withdraw(ctx context.Context, account string, amount int64) error {
	return s.moveBetweenPockets(ctx, account, amount, PocketBank, PocketWallet, "withdraw")
}

func (s *Service) moveBetweenPockets(ctx context.Context, account string, amount int64, from, to Pocket, label string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := adjustBalanceTx(ctx, tx, account, from, -amount); err != nil {
			return err
		}
		if _, err := adjustBalanceTx(ctx, tx, account, to, amount); err != nil {
			return err
		}
		groupID := uuid.New()
		if err := appendJournalTx(ctx, tx, groupID, account, label+":"+string(from), -amount); err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, groupID, account, label+":"+string(to), amount)
	})
}

// GetInventory returns the account's held stacks in item-id order,
// omitting zero rows.
func (s *Service) GetInventory(ctx context.Context, account string) ([]catalog.Stack, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_id, quantity
		FROM inventory
		WHERE account_id = $1 AND quantity > 0
		ORDER BY item_id
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Stack
	for rows.Next() {
		var st catalog.Stack
		if err := rows.Scan(&st.ItemID, &st.Quantity); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Service) GetItemQuantity(ctx context.Context, account, itemID string) (int64, error) {
	var qty int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE((
			SELECT quantity FROM inventory WHERE account_id = $1 AND item_id = $2
		), 0)
	`, account, itemID).Scan(&qty)
	return qty, err
}

func adjustItemTx(ctx context.Context, tx pgx.Tx, account, itemID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO inventory (account_id, item_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id, item_id)
			DO UPDATE SET quantity = inventory.quantity + $3
		`, account, itemID, delta)
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity + $3
		WHERE account_id = $1 AND item_id = $2 AND quantity >= -$3
	`, account, itemID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientItems
	}
	return nil
}

// AdjustItem applies a signed quantity delta to one inventory stack.
// Removing more than the account holds fails with ErrInsufficientItems.
func (s *Service) AdjustItem(ctx context.Context, account, itemID string, delta int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := materializeTx(ctx, tx, account); err != nil {
			return err
		}
		return adjustItemTx(ctx, tx, account, itemID, delta)
	})
}

// GrantReward applies an action payout in one transaction: wallet credit
// plus journal entry, item credits, and one experience point (multiplied
// by any active boost). Level-ups pay their rewards inside the same tx.
func (s *Service) GrantReward(ctx context.Context, account string, coins int64, items []catalog.Stack, label string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, _, err := lockAccountTx(ctx, tx, account); err != nil {
			return err
		}
		groupID := uuid.New()
		if coins != 0 {
			if _, err := adjustBalanceTx(ctx, tx, account, PocketWallet, coins); err != nil {
				return err
			}
			if err := appendJournalTx(ctx, tx, groupID, account, label, coins); err != nil {
				return err
			}
		}
		for _, st := range items {
			if err := adjustItemTx(ctx, tx, account, st.ItemID, st.Quantity); err != nil {
				return err
			}
		}
		return addExperienceTx(ctx, tx, account, 1, groupID)
	})
}

// RedeemItem consumes one unit of an item and credits its drops in the
// same transaction, so a crash can never eat the box without paying out.
func (s *Service) RedeemItem(ctx context.Context, account, itemID string, drops []catalog.Stack) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, _, err := lockAccountTx(ctx, tx, account); err != nil {
			return err
		}
		if err := adjustItemTx(ctx, tx, account, itemID, -1); err != nil {
			return err
		}
		for _, st := range drops {
			if err := adjustItemTx(ctx, tx, account, st.ItemID, st.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// HalveWallet applies the risk-event penalty: the wallet drops to half,
// rounding down, and the loss is journaled. Returns the amount lost.
func (s *Service) HalveWallet(ctx context.Context, account, label string) (int64, error) {
	var lost int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		wallet, _, err := lockAccountTx(ctx, tx, account)
		if err != nil {
			return err
		}
		lost = wallet - wallet/2
		if lost == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET wallet = wallet / 2, updated_at = now() WHERE account_id = $1
		`, account); err != nil {
			return err
		}
		return appendJournalTx(ctx, tx, uuid.New(), account, label, -lost)
	})
	return lost, err
}

// WipeAccount zeroes both balances and clears inventory, badges and any
// boost. Level, experience and cooldown state survive.
func (s *Service) WipeAccount(ctx context.Context, account string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		wallet, bank, err := lockAccountTx(ctx, tx, account)
		if err != nil {
			return err
		}
		groupID := uuid.New()
		if wallet > 0 {
			if err := appendJournalTx(ctx, tx, groupID, account, "wipe:wallet", -wallet); err != nil {
				return err
			}
		}
		if bank > 0 {
			if err := appendJournalTx(ctx, tx, groupID, account, "wipe:bank", -bank); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET wallet = 0, bank = 0, updated_at = now() WHERE account_id = $1
		`, account); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM inventory WHERE account_id = $1`, account); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM badges WHERE account_id = $1`, account); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM boosts WHERE account_id = $1`, account)
		return err
	})
}
