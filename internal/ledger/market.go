package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hoard/internal/catalog"
)

// StockPrice reads the dynamic instrument's current price.
func (s *Service) StockPrice(ctx context.Context) (int64, error) {
	var price int64
	err := s.db.QueryRow(ctx, `
		SELECT price FROM market_state WHERE item_id = $1
	`, catalog.DynamicItemID).Scan(&price)
	return price, err
}

// StepStockPrice applies one price-walk step under the market row lock.
// A step to zero or below is the wipe event: every account's holding of
// the instrument is deleted and the price resets to initialPrice. The
// resulting price is appended to the history either way.
func (s *Service) StepStockPrice(ctx context.Context, delta, initialPrice int64) (next int64, wiped bool, err error) {
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		var price int64
		if err := tx.QueryRow(ctx, `
			SELECT price FROM market_state WHERE item_id = $1 FOR UPDATE
		`, catalog.DynamicItemID).Scan(&price); err != nil {
			return err
		}
		next = price + delta
		if next <= 0 {
			wiped = true
			next = initialPrice
			if _, err := tx.Exec(ctx, `
				DELETE FROM inventory WHERE item_id = $1
			`, catalog.DynamicItemID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE market_state SET price = $2 WHERE item_id = $1
		`, catalog.DynamicItemID, next); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO price_history (price) VALUES ($1)`, next)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if wiped {
		s.log.Warn("market wiped", "next_price", next)
	}
	return next, wiped, nil
}

// PriceHistory returns the most recent price ticks, newest first.
func (s *Service) PriceHistory(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT price FROM price_history ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NetWorth values an account as wallet plus holdings, with the dynamic
// instrument priced from market state and everything else from the shop
// table. Pure read; prices may move the instant it returns.
func (s *Service) NetWorth(ctx context.Context, account string) (int64, error) {
	if err := s.Materialize(ctx, account); err != nil {
		return 0, err
	}
	var worth int64
	err := s.db.QueryRow(ctx, `
		SELECT a.wallet + COALESCE((
			SELECT SUM(i.quantity * CASE
				WHEN i.item_id = $2 THEN m.price
				ELSE COALESCE(s.price, 0)
			END)
			FROM inventory i
			LEFT JOIN shop_items s ON s.id = i.item_id
			LEFT JOIN market_state m ON m.item_id = i.item_id
			WHERE i.account_id = a.account_id
		), 0)
		FROM accounts a
		WHERE a.account_id = $1
	`, account, catalog.DynamicItemID).Scan(&worth)
	return worth, err
}

// Rank is one leaderboard row.
type Rank struct {
	Account string `json:"account"`
	Value   int64  `json:"value"`
}

// Leaderboard returns the top accounts by net worth, ties broken by
// account id so the ordering is stable.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Rank, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		WITH holdings AS (
			SELECT i.account_id,
			       SUM(i.quantity * CASE
			           WHEN i.item_id = $1 THEN m.price
			           ELSE COALESCE(s.price, 0)
			       END) AS items_value
			FROM inventory i
			LEFT JOIN shop_items s ON s.id = i.item_id
			LEFT JOIN market_state m ON m.item_id = i.item_id
			GROUP BY i.account_id
		)
		SELECT a.account_id, a.wallet + COALESCE(h.items_value, 0) AS net_worth
		FROM accounts a
		LEFT JOIN holdings h ON h.account_id = a.account_id
		ORDER BY net_worth DESC, a.account_id ASC
		LIMIT $2
	`, catalog.DynamicItemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rank
	for rows.Next() {
		var r Rank
		if err := rows.Scan(&r.Account, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ItemLeaderboard ranks holders of one item by quantity.
func (s *Service) ItemLeaderboard(ctx context.Context, itemID string, limit int) ([]Rank, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT account_id, quantity
		FROM inventory
		WHERE item_id = $1 AND quantity > 0
		ORDER BY quantity DESC, account_id ASC
		LIMIT $2
	`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rank
	for rows.Next() {
		var r Rank
		if err := rows.Scan(&r.Account, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
