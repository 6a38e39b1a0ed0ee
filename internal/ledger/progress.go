package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hoard/internal/catalog"
)

// Badges returns the account's badge names in sorted order.
func (s *Service) Badges(ctx context.Context, account string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT badge_name FROM badges WHERE account_id = $1 ORDER BY badge_name
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Service) AddBadge(ctx context.Context, account, name string) error {
	if err := s.Materialize(ctx, account); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO badges (account_id, badge_name)
		VALUES ($1, $2)
		ON CONFLICT (account_id, badge_name) DO NOTHING
	`, account, name)
	return err
}

func (s *Service) RemoveBadge(ctx context.Context, account, name string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM badges WHERE account_id = $1 AND badge_name = $2
	`, account, name)
	return err
}

// ActiveBoost returns the experience multiplier, treating expired rows as
// absent and garbage-collecting them on read.
func (s *Service) ActiveBoost(ctx context.Context, account string) (int64, bool, error) {
	var factor int64
	var expiresAt time.Time
	err := s.db.QueryRow(ctx, `
		SELECT factor, expires_at FROM boosts WHERE account_id = $1
	`, account).Scan(&factor, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !expiresAt.After(time.Now()) {
		_, _ = s.db.Exec(ctx, `
			DELETE FROM boosts WHERE account_id = $1 AND expires_at <= now()
		`, account)
		return 0, false, nil
	}
	return factor, true, nil
}

func (s *Service) SetBoost(ctx context.Context, account string, factor int64, expiresAt time.Time) error {
	if factor <= 0 {
		return ErrInvalidAmount
	}
	if err := s.Materialize(ctx, account); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO boosts (account_id, factor, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET factor = $2, expires_at = $3
	`, account, factor, expiresAt)
	return err
}

func (s *Service) ClearBoost(ctx context.Context, account string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM boosts WHERE account_id = $1`, account)
	return err
}

// Level is the progression snapshot: current level, experience into the
// level, the requirement to pass it, and the rebirth count.
type Level struct {
	Level        int   `json:"level"`
	Experience   int64 `json:"experience"`
	NextLevelXP  int64 `json:"next_level_xp"`
	RebirthLevel int   `json:"rebirth_level"`
}

func (s *Service) LevelData(ctx context.Context, account string) (Level, error) {
	if err := s.Materialize(ctx, account); err != nil {
		return Level{}, err
	}
	var lv Level
	err := s.db.QueryRow(ctx, `
		SELECT level, experience, rebirth_level FROM accounts WHERE account_id = $1
	`, account).Scan(&lv.Level, &lv.Experience, &lv.RebirthLevel)
	if err != nil {
		return Level{}, err
	}
	lv.NextLevelXP = catalog.XPForLevel(lv.Level)
	return lv, nil
}

// addExperienceTx adds n experience points (boost-multiplied) to an
// already-locked account and settles any resulting level-ups, paying each
// level's reward under the given journal group.
func addExperienceTx(ctx context.Context, tx pgx.Tx, account string, n int64, groupID uuid.UUID) error {
	if n <= 0 {
		return nil
	}
	var factor int64
	err := tx.QueryRow(ctx, `
		SELECT factor FROM boosts WHERE account_id = $1 AND expires_at > now()
	`, account).Scan(&factor)
	if errors.Is(err, pgx.ErrNoRows) {
		factor = 1
	} else if err != nil {
		return err
	}
	gained := n * factor

	var level int
	var xp int64
	if err := tx.QueryRow(ctx, `
		SELECT level, experience FROM accounts WHERE account_id = $1
	`, account).Scan(&level, &xp); err != nil {
		return err
	}

	xp += gained
	for xp >= catalog.XPForLevel(level) {
		xp -= catalog.XPForLevel(level)
		level++
		reward := catalog.RewardForLevel(level)
		if reward.Coins > 0 {
			if _, err := adjustBalanceTx(ctx, tx, account, PocketWallet, reward.Coins); err != nil {
				return err
			}
			if err := appendJournalTx(ctx, tx, groupID, account, "levelup", reward.Coins); err != nil {
				return err
			}
		}
		for _, st := range reward.Items {
			if err := adjustItemTx(ctx, tx, account, st.ItemID, st.Quantity); err != nil {
				return err
			}
		}
	}
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET level = $2, experience = $3, updated_at = now()
		WHERE account_id = $1
	`, account, level, xp)
	return err
}

// AddExperience credits experience outside of a reward grant, with the
// same boost and level-up handling.
func (s *Service) AddExperience(ctx context.Context, account string, n int64) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, _, err := lockAccountTx(ctx, tx, account); err != nil {
			return err
		}
		return addExperienceTx(ctx, tx, account, n, uuid.New())
	})
}

// SetLevel force-sets the level, zeroing partial experience. Admin-only.
func (s *Service) SetLevel(ctx context.Context, account string, level int) error {
	if level < 1 {
		return ErrInvalidAmount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, _, err := lockAccountTx(ctx, tx, account); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE accounts SET level = $2, experience = 0, updated_at = now()
			WHERE account_id = $1
		`, account, level)
		return err
	})
}

// GrantLevelReward replays the payout for a level, for manual fixups.
func (s *Service) GrantLevelReward(ctx context.Context, account string, level int) error {
	reward := catalog.RewardForLevel(level)
	if reward.Coins == 0 && len(reward.Items) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, _, err := lockAccountTx(ctx, tx, account); err != nil {
			return err
		}
		if reward.Coins > 0 {
			if _, err := adjustBalanceTx(ctx, tx, account, PocketWallet, reward.Coins); err != nil {
				return err
			}
			if err := appendJournalTx(ctx, tx, uuid.New(), account, "levelup", reward.Coins); err != nil {
				return err
			}
		}
		for _, st := range reward.Items {
			if err := adjustItemTx(ctx, tx, account, st.ItemID, st.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// Entry is one journal row.
type Entry struct {
	Seq     int64     `json:"seq"`
	Account string    `json:"account"`
	Label   string    `json:"label"`
	Amount  int64     `json:"amount"`
	At      time.Time `json:"at"`
}

// Journal returns the account's most recent entries, newest first.
func (s *Service) Journal(ctx context.Context, account string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, action, amount, created_at
		FROM journal
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Account, &e.Label, &e.Amount, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
