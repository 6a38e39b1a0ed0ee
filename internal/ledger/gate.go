package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hoard/internal/catalog"
)

// Gate is the result of a cooldown reservation attempt. When Eligible is
// false, Remaining is how long until the action unlocks, truncated to
// whole seconds.
type Gate struct {
	Eligible  bool
	Remaining time.Duration
}

// CheckAndReserve atomically tests and arms the cooldown for one action.
// The check and the reservation are a single statement, so two concurrent
// attempts inside the window can never both pass.
func (s *Service) CheckAndReserve(ctx context.Context, account string, kind catalog.ActionKind, d time.Duration) (Gate, error) {
	if err := s.Materialize(ctx, account); err != nil {
		return Gate{}, err
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO cooldowns (account_id, action, next_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (account_id, action) DO UPDATE
		SET next_at = now() + make_interval(secs => $3)
		WHERE cooldowns.next_at <= now()
	`, account, string(kind), d.Seconds())
	if err != nil {
		return Gate{}, err
	}
	if tag.RowsAffected() == 1 {
		return Gate{Eligible: true}, nil
	}
	remaining, err := s.CooldownRemaining(ctx, account, kind)
	if err != nil {
		return Gate{}, err
	}
	return Gate{Remaining: remaining}, nil
}

// CooldownRemaining peeks at the cooldown without arming it. Zero means
// the action is available now.
func (s *Service) CooldownRemaining(ctx context.Context, account string, kind catalog.ActionKind) (time.Duration, error) {
	var nextAt, now time.Time
	err := s.db.QueryRow(ctx, `
		SELECT next_at, now() FROM cooldowns WHERE account_id = $1 AND action = $2
	`, account, string(kind)).Scan(&nextAt, &now)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return remainingUntil(nextAt, now), nil
}

// remainingUntil reports the wait until nextAt, truncated to whole
// seconds and floored at zero. Both timestamps come from the same
// database read.
func remainingUntil(nextAt, now time.Time) time.Duration {
	remaining := nextAt.Sub(now).Truncate(time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
