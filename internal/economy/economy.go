// Package economy ties the pure reward engine to the ledger: it gates an
// action on its cooldown, rolls the outcome and applies it atomically.
// Both front-ends (HTTP API and the Discord bot) drive this service so
// the rules live in exactly one place.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hoard/internal/catalog"
	"hoard/internal/ledger"
	"hoard/internal/reward"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownLocation = errors.New("unknown location")
	ErrNotABox         = errors.New("item is not a loot box")
)

// CooldownError reports a gated action attempted inside its window.
type CooldownError struct {
	Kind      catalog.ActionKind
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s is on cooldown for %s", e.Kind, e.Remaining)
}

type Service struct {
	store  *ledger.Service
	engine *reward.Engine
	log    *slog.Logger
}

func New(store *ledger.Service, engine *reward.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, log: logger}
}

// ActionResult is the applied outcome of one gated action.
type ActionResult struct {
	Kind    catalog.ActionKind `json:"kind"`
	Success bool               `json:"success"`
	Coins   int64              `json:"coins"`
	Loot    []catalog.Stack    `json:"loot,omitempty"`
	Patron  string             `json:"patron,omitempty"`

	Fish *reward.FishOutcome `json:"fish,omitempty"`

	Location string `json:"location,omitempty"`
	Penalty  bool   `json:"penalty"`
	Lost     int64  `json:"lost,omitempty"`
}

// OfferSearch returns candidate locations without arming the cooldown;
// the caller picks one and comes back through PerformAction.
func (s *Service) OfferSearch(ctx context.Context, account string, k int) ([]catalog.Location, error) {
	remaining, err := s.store.CooldownRemaining(ctx, account, catalog.ActionSearch)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, &CooldownError{Kind: catalog.ActionSearch, Remaining: remaining}
	}
	return s.engine.OfferLocations(k), nil
}

// PerformAction gates, rolls and applies one action. locationID is only
// meaningful for search. The cooldown arms on every eligible attempt,
// including failed begs and penalty searches.
func (s *Service) PerformAction(ctx context.Context, account string, kind catalog.ActionKind, locationID string) (ActionResult, error) {
	if !kind.Valid() {
		return ActionResult{}, ErrUnknownAction
	}
	var loc catalog.Location
	if kind == catalog.ActionSearch {
		var ok bool
		if loc, ok = catalog.LocationByID(locationID); !ok {
			return ActionResult{}, ErrUnknownLocation
		}
	}

	gate, err := s.store.CheckAndReserve(ctx, account, kind, kind.Cooldown())
	if err != nil {
		return ActionResult{}, err
	}
	if !gate.Eligible {
		return ActionResult{}, &CooldownError{Kind: kind, Remaining: gate.Remaining}
	}

	res := ActionResult{Kind: kind}
	switch kind {
	case catalog.ActionBeg:
		out := s.engine.Beg()
		if !out.Success {
			return res, nil
		}
		res.Success = true
		res.Coins = out.Coins
		res.Patron = out.Patron

	case catalog.ActionFetch:
		out := s.engine.Fetch()
		res.Success = true
		res.Coins = out.Coins
		res.Loot = out.Loot

	case catalog.ActionHunt:
		out := s.engine.Hunt()
		res.Success = true
		res.Coins = out.Coins
		res.Loot = out.Loot

	case catalog.ActionStake:
		out := s.engine.Stake()
		res.Success = true
		res.Coins = out.Coins
		res.Loot = out.Loot

	case catalog.ActionFish:
		out := s.engine.Fish()
		res.Success = true
		res.Coins = out.Value
		res.Fish = &out

	case catalog.ActionSearch:
		out := s.engine.Search(loc)
		res.Location = loc.ID
		if out.Penalty {
			res.Penalty = true
			lost, err := s.store.HalveWallet(ctx, account, "search:"+loc.ID)
			if err != nil {
				return ActionResult{}, err
			}
			res.Lost = lost
			return res, nil
		}
		res.Success = true
		res.Coins = out.Coins
		res.Loot = out.Loot
	}

	if err := s.store.GrantReward(ctx, account, res.Coins, res.Loot, string(kind)); err != nil {
		return ActionResult{}, err
	}
	return res, nil
}

// BoxResult is one opened loot box.
type BoxResult struct {
	Box   string          `json:"box"`
	Drops []catalog.Stack `json:"drops"`
}

// OpenBox consumes one box from the inventory and applies the rolled
// drops in the same ledger transaction. An empty Drops slice is a valid
// outcome, not an error.
func (s *Service) OpenBox(ctx context.Context, account, boxID string) (BoxResult, error) {
	drops, ok := s.engine.OpenLootBox(boxID)
	if !ok {
		return BoxResult{}, ErrNotABox
	}
	if err := s.store.RedeemItem(ctx, account, boxID, drops); err != nil {
		return BoxResult{}, err
	}
	return BoxResult{Box: boxID, Drops: drops}, nil
}

// UseCrown consumes a crown, which has a small chance of transforming
// into its enchanted variant instead of vanishing.
func (s *Service) UseCrown(ctx context.Context, account string) (upgraded bool, err error) {
	var drops []catalog.Stack
	if s.engine.UseCrown() {
		upgraded = true
		drops = []catalog.Stack{{ItemID: "ecrown", Quantity: 1}}
	}
	if err := s.store.RedeemItem(ctx, account, "crown", drops); err != nil {
		return false, err
	}
	return upgraded, nil
}
