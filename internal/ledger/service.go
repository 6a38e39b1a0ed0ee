// Package ledger is the durable account store: balances, inventory,
// badges, boosts, cooldowns, the append-only transaction journal and the
// market state of the dynamic instrument. Every mutation is a single SQL
// transaction; per-account read-modify-write sequences hold the account
// row lock so unrelated accounts never block each other.
package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hoard/internal/catalog"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientItems = errors.New("insufficient items")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrAmountOverflow    = errors.New("amount overflows the ledger")
	ErrTxConflict        = errors.New("transaction conflict, please retry")
)

// Pocket selects which balance an operation touches.
type Pocket string

const (
	PocketWallet Pocket = "wallet"
	PocketBank   Pocket = "bank"
)

func (p Pocket) column() (string, error) {
	switch p {
	case PocketWallet:
		return "wallet", nil
	case PocketBank:
		return "bank", nil
	}
	return "", fmt.Errorf("unknown balance pocket %q", p)
}

type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

// Migrate applies the schema, seeds the static shop rows from the catalog
// and initializes the market state once.
func (s *Service) Migrate(ctx context.Context, initialPrice int64) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, it := range catalog.Items() {
		if it.Dynamic {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO shop_items (id, name, price)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3
		`, it.ID, it.Name, it.Price); err != nil {
			return fmt.Errorf("seed shop item %s: %w", it.ID, err)
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO market_state (item_id, price)
		VALUES ($1, $2)
		ON CONFLICT (item_id) DO NOTHING
	`, catalog.DynamicItemID, initialPrice); err != nil {
		return fmt.Errorf("seed market state: %w", err)
	}
	return tx.Commit(ctx)
}

// materializeTx lazily creates the account record, the idempotent
// first-reference step every operation performs.
func materializeTx(ctx context.Context, tx pgx.Tx, account string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, account)
	return err
}

// Materialize ensures the account exists outside of any larger mutation.
func (s *Service) Materialize(ctx context.Context, account string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, account)
	return err
}

// lockAccountTx materializes the account and takes its row lock, returning
// the current balances. Holding this lock is the per-account critical
// section.
func lockAccountTx(ctx context.Context, tx pgx.Tx, account string) (wallet, bank int64, err error) {
	if err := materializeTx(ctx, tx, account); err != nil {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx, `
		SELECT wallet, bank
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, account).Scan(&wallet, &bank)
	return wallet, bank, err
}

func appendJournalTx(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, account, action string, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journal (group_id, account_id, action, amount)
		VALUES ($1, $2, $3, $4)
	`, groupID, account, action, amount)
	return err
}

// withTx runs fn inside a read-committed transaction.
func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// withSerializableRetry runs fn under serializable isolation, retrying
// bounded times on serialization conflicts with exponential backoff.
func (s *Service) withSerializableRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sortedPair orders two account ids so every transfer locks rows in the
// same global order, preventing circular waits between opposite-direction
// transfers.
func sortedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// TotalPrice multiplies with an overflow guard; prices and quantities are
// caller-validated positive. Exported so the propose phase can reject an
// overflowing order before it is ever admitted.
func TotalPrice(unitPrice, qty int64) (int64, error) {
	if unitPrice == 0 || qty == 0 {
		return 0, nil
	}
	if unitPrice > math.MaxInt64/qty {
		return 0, ErrAmountOverflow
	}
	return unitPrice * qty, nil
}
