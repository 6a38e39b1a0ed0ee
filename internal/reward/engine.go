// Package reward resolves the randomized outcomes of the grind actions:
// begging, fetching, hunting, staking, fishing, location searches and
// loot boxes. The engine is pure sampling over an injected random source
// and never touches storage; callers apply outcomes through the ledger.
package reward

import (
	"math/rand"
	"sync"
	"time"

	"hoard/internal/catalog"
)

// Rand is the random source the engine draws from. *math/rand.Rand
// satisfies it; tests inject scripted sources.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type Engine struct {
	mu  sync.Mutex
	rng Rand
}

// New wraps a random source. The engine serializes draws, so one engine
// may be shared across requests.
func New(rng Rand) *Engine {
	return &Engine{rng: rng}
}

// NewSeeded is a convenience for production wiring and reproducible tests.
func NewSeeded(seed int64) *Engine {
	return New(rand.New(rand.NewSource(seed)))
}

// NewDefault seeds from the clock, the usual production setup.
func NewDefault() *Engine {
	return NewSeeded(time.Now().UnixNano())
}

const begSuccessChance = 0.75

var patrons = []string{
	"a kind stranger",
	"a passing merchant",
	"an old friend",
	"a retired pirate",
	"a street performer",
	"a wandering monk",
	"a generous noble",
	"a lucky gambler",
}

type BegOutcome struct {
	Success bool
	Coins   int64
	Patron  string
}

// Beg succeeds three times out of four and pays a uniform amount.
func (e *Engine) Beg() BegOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rng.Float64() >= begSuccessChance {
		return BegOutcome{}
	}
	return BegOutcome{
		Success: true,
		Coins:   e.intInRange(1000, 10000),
		Patron:  patrons[e.rng.Intn(len(patrons))],
	}
}

// ActionOutcome is a coin reward plus whatever loot the bands produced.
type ActionOutcome struct {
	Coins int64
	Loot  []catalog.Stack
}

// Fetch pays coins and rolls one ordered band table for a bonus item.
func (e *Engine) Fetch() ActionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := ActionOutcome{Coins: e.intInRange(1000, 10000)}
	switch roll := e.rng.Float64(); {
	case roll < 0.30:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "bone", Quantity: 1})
	case roll < 0.45:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "leash", Quantity: 1})
	case roll < 0.50:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "dogfood", Quantity: 1})
	}
	return out
}

// Hunt pays coins and resolves loot on a 300-sided die.
func (e *Engine) Hunt() ActionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := ActionOutcome{Coins: e.intInRange(500, 5000)}
	switch die := e.intInRange(1, 300); {
	case die <= 20:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "duck", Quantity: 1})
	case die == 21:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "cat", Quantity: 1})
	case die <= 30:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "temple", Quantity: 1})
	case die <= 40:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "legendarylootbox", Quantity: 1})
	}
	return out
}

// Stake pays coins and occasionally drops a loot box.
func (e *Engine) Stake() ActionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := ActionOutcome{Coins: e.intInRange(500, 5000)}
	switch roll := e.rng.Float64(); {
	case roll < 0.01:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "bestlootbox", Quantity: 1})
	case roll < 0.05:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "legendarylootbox", Quantity: 1})
	case roll < 0.20:
		out.Loot = append(out.Loot, catalog.Stack{ItemID: "rarelootbox", Quantity: 1})
	}
	return out
}

type FishOutcome struct {
	Name  string
	Size  int
	Value int64
}

// Fish selects a species by cumulative weight, then a uniform size within
// the species range; value follows the catalog's exponential curve.
func (e *Engine) Fish() FishOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0.0
	for _, f := range catalog.FishTypes {
		total += f.Weight
	}
	u := e.rng.Float64() * total

	cum := 0.0
	pick := catalog.FishTypes[len(catalog.FishTypes)-1]
	for _, f := range catalog.FishTypes {
		cum += f.Weight
		if cum >= u {
			pick = f
			break
		}
	}
	size := int(e.intInRange(int64(pick.MinSize), int64(pick.MaxSize)))
	return FishOutcome{Name: pick.Name, Size: size, Value: catalog.FishValue(size)}
}

// OfferLocations samples k distinct search locations for the caller to
// choose between.
func (e *Engine) OfferLocations(k int) []catalog.Location {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := catalog.Locations()
	if k > len(all) {
		k = len(all)
	}
	for i := 0; i < k; i++ {
		j := i + e.rng.Intn(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:k]
}

type SearchOutcome struct {
	Location string
	// Penalty marks the risk event: the searcher loses half their wallet
	// and receives no coins or loot.
	Penalty bool
	Coins   int64
	Loot    []catalog.Stack
}

// Search resolves one search of the given location. Loot entries are
// independent trials, not mutually exclusive bands.
func (e *Engine) Search(loc catalog.Location) SearchOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := SearchOutcome{Location: loc.ID}
	out.Coins = e.intInRange(loc.MinCoins, loc.MaxCoins)
	if loc.Risky && e.rng.Float64() < catalog.RiskEventChance {
		return SearchOutcome{Location: loc.ID, Penalty: true}
	}
	for _, roll := range loc.Loot {
		if e.rng.Float64() < roll.Chance {
			out.Loot = append(out.Loot, catalog.Stack{ItemID: roll.ItemID, Quantity: roll.Quantity})
		}
	}
	return out
}

// OpenLootBox rolls the box's band table once. The returned stacks may be
// empty, may include more boxes of the same type, and are not yet applied
// to any account.
func (e *Engine) OpenLootBox(boxID string) ([]catalog.Stack, bool) {
	table, ok := catalog.BoxTable(boxID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	roll := e.rng.Float64()
	for _, band := range table {
		if roll < band.Limit {
			out := make([]catalog.Stack, len(band.Drops))
			copy(out, band.Drops)
			return out, true
		}
	}
	return nil, true
}

// UseCrown reports whether a consumed crown transforms into an enchanted
// crown.
func (e *Engine) UseCrown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < catalog.CrownTransformChance
}

// intInRange draws uniformly from [min, max] inclusive. Callers hold e.mu.
func (e *Engine) intInRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + int64(e.rng.Intn(int(max-min+1)))
}
