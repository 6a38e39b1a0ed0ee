// Package catalog holds the immutable reference data for the economy:
// shop items, search locations, fish, loot-box tables and level rewards.
// It is loaded once at process start and never mutated at runtime; the one
// runtime-variable price (the dynamic instrument) lives in market state,
// not here.
package catalog

import (
	"math"
	"time"
)

// DynamicItemID is the single tradable instrument whose price is owned by
// the price walk, not by the catalog.
const DynamicItemID = "stock"

type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Dynamic  bool   `json:"dynamic"`
	Buyable  bool   `json:"buyable"`
	Sellable bool   `json:"sellable"`
}

// Stack is a quantity of one item.
type Stack struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

var items = []Item{
	{ID: "beard", Name: "Beard", Price: 10_000, Buyable: true, Sellable: true},
	{ID: "troll", Name: "Troll", Price: 100_000, Buyable: true, Sellable: true},
	{ID: "dog", Name: "Doggy", Price: 300_000, Buyable: true, Sellable: true},
	{ID: "sun", Name: "Sunny", Price: 500_000, Buyable: true, Sellable: true},
	{ID: "skull", Name: "Skull Skeleton", Price: 1_000_000, Buyable: true, Sellable: true},
	{ID: "banana", Name: "Golden Banana", Price: 10_000_000, Buyable: true, Sellable: true},
	{ID: "bone", Name: "Bone", Price: 5_000, Sellable: true},
	{ID: "leash", Name: "Dog Leash", Price: 25_000, Sellable: true},
	{ID: "dogfood", Name: "Dog Food", Price: 100_000, Sellable: true},
	{ID: "rarelootbox", Name: "Rare Loot Box", Price: 5_000, Sellable: true},
	{ID: "legendarylootbox", Name: "Legendary Loot Box", Price: 100_000, Sellable: true},
	{ID: "bestlootbox", Name: "Best Loot Box", Price: 4_000_000, Sellable: true},
	{ID: "bolb", Name: "Bolb", Price: 50_000_000, Sellable: true},
	{ID: "dupe", Name: "Dupe Hunter", Price: 2_500_000, Sellable: true},
	{ID: "kuppy", Name: "Kuppy", Price: 50_000, Sellable: true},
	{ID: "grass", Name: "Grass", Price: 200_000, Sellable: true},
	{ID: "pyramid", Name: "Pyramid", Price: 911_000, Buyable: true, Sellable: true},
	{ID: "crown", Name: "Crown", Price: 1_000_000, Sellable: true},
	{ID: "ecrown", Name: "Enchanted Crown", Price: 75_000_000, Sellable: true},
	{ID: "trinket", Name: "Trinket", Price: 10, Sellable: true},
	{ID: "godbox", Name: "God Box", Price: 40_000_000, Buyable: true, Sellable: true},
	{ID: DynamicItemID, Name: "Stock", Dynamic: true, Buyable: true, Sellable: true},
	{ID: "duck", Name: "Wise Duck", Price: 25_000, Sellable: true},
	{ID: "cat", Name: "Cat", Price: 25_000_000, Sellable: true},
	{ID: "temple", Name: "Temple", Price: 300_000, Sellable: true},
	{ID: "tren", Name: "Tren", Price: 100_000_000, Sellable: true},
}

var itemIndex = func() map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}()

func ItemByID(id string) (Item, bool) {
	it, ok := itemIndex[id]
	return it, ok
}

// Items returns the catalog in its stable declaration order.
func Items() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// LootRoll is one independent Bernoulli trial attached to a location.
type LootRoll struct {
	ItemID   string
	Chance   float64
	Quantity int64
}

type Location struct {
	ID          string
	Description string
	MinCoins    int64
	MaxCoins    int64
	// Risky locations roll an independent penalty event that costs the
	// searcher half their wallet instead of paying out.
	Risky bool
	Loot  []LootRoll
}

// RiskEventChance is the probability of the penalty event at a risky
// location.
const RiskEventChance = 0.10

var locations = []Location{
	{ID: "outside", Description: "Outside area", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{{ItemID: "sun", Chance: 0.05, Quantity: 1}}},
	{ID: "house", Description: "An old house", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{
			{ItemID: "beard", Chance: 0.20, Quantity: 1},
			{ItemID: "legendarylootbox", Chance: 0.05, Quantity: 1},
			{ItemID: "pyramid", Chance: 0.04, Quantity: 1},
		}},
	{ID: "mountain", Description: "A tall mountain", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{{ItemID: "rarelootbox", Chance: 0.20, Quantity: 1}}},
	{ID: "street", Description: "City street", MinCoins: 500, MaxCoins: 5000},
	{ID: "dogpark", Description: "Dog park", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{
			{ItemID: "bestlootbox", Chance: 0.01, Quantity: 1},
			{ItemID: "kuppy", Chance: 0.05, Quantity: 1},
		}},
	{ID: "field", Description: "Grassy field", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{{ItemID: "grass", Chance: 0.02, Quantity: 1}}},
	{ID: "pyramid", Description: "Ancient pyramid", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{
			{ItemID: "pyramid", Chance: 0.02, Quantity: 1},
			{ItemID: "crown", Chance: 0.02, Quantity: 1},
		}},
	{ID: "alley", Description: "Back alley (risky)", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{
			{ItemID: "sun", Chance: 0.01, Quantity: 1},
			{ItemID: "bestlootbox", Chance: 0.01, Quantity: 1},
			{ItemID: "crown", Chance: 0.01, Quantity: 1},
		}},
	{ID: "badlands", Description: "The badlands (very risky)", MinCoins: 500, MaxCoins: 5000,
		Risky: true,
		Loot:  []LootRoll{{ItemID: "sun", Chance: 0.10, Quantity: 1}}},
	{ID: "arena", Description: "Fight arena", MinCoins: 500, MaxCoins: 5000,
		Loot: []LootRoll{
			{ItemID: "trinket", Chance: 0.30, Quantity: 1},
			{ItemID: "beard", Chance: 0.10, Quantity: 1},
			{ItemID: "rarelootbox", Chance: 0.01, Quantity: 1},
			{ItemID: "legendarylootbox", Chance: 0.01, Quantity: 1},
			{ItemID: "bestlootbox", Chance: 0.01, Quantity: 1},
		}},
}

var locationIndex = func() map[string]Location {
	m := make(map[string]Location, len(locations))
	for _, loc := range locations {
		m[loc.ID] = loc
	}
	return m
}()

func LocationByID(id string) (Location, bool) {
	loc, ok := locationIndex[id]
	return loc, ok
}

func Locations() []Location {
	out := make([]Location, len(locations))
	copy(out, locations)
	return out
}

type FishType struct {
	Name    string
	MinSize int
	MaxSize int
	Weight  float64
}

var FishTypes = []FishType{
	{Name: "Clownfish", MinSize: 2, MaxSize: 4, Weight: 0.30},
	{Name: "Pufferfish", MinSize: 4, MaxSize: 8, Weight: 0.25},
	{Name: "Trout", MinSize: 20, MaxSize: 30, Weight: 0.20},
	{Name: "Sea Turtle", MinSize: 24, MaxSize: 48, Weight: 0.10},
	{Name: "Sailfish", MinSize: 60, MaxSize: 84, Weight: 0.07},
	{Name: "Shark", MinSize: 72, MaxSize: 240, Weight: 0.05},
	{Name: "Dolphin", MinSize: 72, MaxSize: 144, Weight: 0.025},
	{Name: "Blue Whale", MinSize: 840, MaxSize: 1080, Weight: 0.0025},
}

const (
	FishBasePrice    = 100
	FishGrowthFactor = 1.0073
)

// FishValue prices a catch on an exponential size curve: bigger fish are
// worth disproportionately more.
func FishValue(size int) int64 {
	return int64(math.Round(FishBasePrice * math.Pow(FishGrowthFactor, float64(size-1))))
}

// BoxBand is one half-open probability band [previous limit, Limit) of a
// loot-box table. Bands are checked in order and partition [0,1).
type BoxBand struct {
	Limit float64
	Drops []Stack
}

var boxTables = map[string][]BoxBand{
	"rarelootbox": {
		{Limit: 0.50},
		{Limit: 0.80, Drops: []Stack{{ItemID: "beard", Quantity: 1}}},
		{Limit: 0.95, Drops: []Stack{{ItemID: "troll", Quantity: 1}}},
		{Limit: 1.00, Drops: []Stack{{ItemID: "dog", Quantity: 1}}},
	},
	"legendarylootbox": {
		{Limit: 0.50, Drops: []Stack{{ItemID: "troll", Quantity: 1}}},
		{Limit: 0.80},
		{Limit: 0.95, Drops: []Stack{{ItemID: "sun", Quantity: 1}}},
		{Limit: 1.00, Drops: []Stack{{ItemID: "skull", Quantity: 1}}},
	},
	// bestlootbox can yield two more of itself.
	"bestlootbox": {
		{Limit: 0.30, Drops: []Stack{{ItemID: "skull", Quantity: 1}}},
		{Limit: 0.50},
		{Limit: 0.70, Drops: []Stack{{ItemID: "bestlootbox", Quantity: 2}}},
		{Limit: 0.80, Drops: []Stack{{ItemID: "banana", Quantity: 1}}},
		{Limit: 0.89, Drops: []Stack{{ItemID: "beard", Quantity: 1}}},
		{Limit: 1.00, Drops: []Stack{{ItemID: "bolb", Quantity: 1}}},
	},
	"godbox": {
		{Limit: 0.50},
		{Limit: 1.00, Drops: []Stack{{ItemID: "ecrown", Quantity: 1}}},
	},
}

// BoxTable returns the ordered band table for a loot box, if id names one.
func BoxTable(id string) ([]BoxBand, bool) {
	t, ok := boxTables[id]
	return t, ok
}

// CrownTransformChance is the probability that using a crown upgrades it
// into an enchanted crown instead of being consumed.
const CrownTransformChance = 0.01

// ActionKind is the closed set of cooldown-gated reward actions. Free-form
// action names are never accepted.
type ActionKind string

const (
	ActionBeg    ActionKind = "beg"
	ActionSearch ActionKind = "search"
	ActionFetch  ActionKind = "fetch"
	ActionFish   ActionKind = "fish"
	ActionHunt   ActionKind = "hunt"
	ActionStake  ActionKind = "stake"
)

var actionCooldowns = map[ActionKind]time.Duration{
	ActionBeg:    60 * time.Second,
	ActionSearch: 60 * time.Second,
	ActionFetch:  75 * time.Second,
	ActionFish:   60 * time.Second,
	ActionHunt:   60 * time.Second,
	ActionStake:  150 * time.Second,
}

func (k ActionKind) Valid() bool {
	_, ok := actionCooldowns[k]
	return ok
}

func (k ActionKind) Cooldown() time.Duration {
	return actionCooldowns[k]
}

func ActionKinds() []ActionKind {
	return []ActionKind{ActionBeg, ActionSearch, ActionFetch, ActionFish, ActionHunt, ActionStake}
}

// LevelReward is what levelling up pays out.
type LevelReward struct {
	Coins int64
	Items []Stack
}

var levelRewards = map[int]LevelReward{
	1:  {Coins: 50_000},
	3:  {Coins: 100_000},
	5:  {Items: []Stack{{ItemID: "grass", Quantity: 1}}},
	8:  {Items: []Stack{{ItemID: "crown", Quantity: 1}}},
	10: {Items: []Stack{{ItemID: "bestlootbox", Quantity: 2}}},
	12: {Items: []Stack{{ItemID: "kuppy", Quantity: 10}, {ItemID: "bestlootbox", Quantity: 2}, {ItemID: "crown", Quantity: 1}}},
	14: {Items: []Stack{{ItemID: "banana", Quantity: 1}}},
	15: {Items: []Stack{{ItemID: "godbox", Quantity: 1}}},
	17: {Items: []Stack{{ItemID: "bolb", Quantity: 1}}},
	18: {Items: []Stack{{ItemID: "godbox", Quantity: 2}}},
	19: {Items: []Stack{{ItemID: "ecrown", Quantity: 1}}},
	20: {Coins: 50_000_000, Items: []Stack{{ItemID: "bolb", Quantity: 1}}},
	21: {Coins: 25_000_000, Items: []Stack{{ItemID: "tren", Quantity: 1}}},
}

// RewardForLevel returns the payout for reaching a level. Levels past the
// fixed table pay scaling coins only.
func RewardForLevel(level int) LevelReward {
	if r, ok := levelRewards[level]; ok {
		return r
	}
	if level >= 22 {
		return LevelReward{Coins: int64(math.Round(150_000_000 * math.Pow(1.2, float64(level-21))))}
	}
	return LevelReward{}
}

// XPForLevel is the experience required to advance past a level.
func XPForLevel(level int) int64 {
	l := int64(level)
	return l*l*10 + l*10 + 10
}
