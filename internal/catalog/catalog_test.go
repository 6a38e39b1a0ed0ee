package catalog

import "testing"

func TestExactlyOneDynamicItem(t *testing.T) {
	var dynamic []string
	for _, it := range Items() {
		if it.Dynamic {
			dynamic = append(dynamic, it.ID)
		}
	}
	if len(dynamic) != 1 || dynamic[0] != DynamicItemID {
		t.Fatalf("expected exactly one dynamic item %q, got %v", DynamicItemID, dynamic)
	}
}

func TestLocationLootReferencesKnownItems(t *testing.T) {
	for _, loc := range Locations() {
		if loc.MinCoins <= 0 || loc.MaxCoins < loc.MinCoins {
			t.Fatalf("location %q has invalid coin range [%d,%d]", loc.ID, loc.MinCoins, loc.MaxCoins)
		}
		for _, roll := range loc.Loot {
			if _, ok := ItemByID(roll.ItemID); !ok {
				t.Fatalf("location %q drops unknown item %q", loc.ID, roll.ItemID)
			}
			if roll.Chance <= 0 || roll.Chance >= 1 {
				t.Fatalf("location %q roll for %q has chance %v outside (0,1)", loc.ID, roll.ItemID, roll.Chance)
			}
			if roll.Quantity <= 0 {
				t.Fatalf("location %q roll for %q has non-positive quantity", loc.ID, roll.ItemID)
			}
		}
	}
}

func TestBoxTablesPartitionUnitInterval(t *testing.T) {
	for _, id := range []string{"rarelootbox", "legendarylootbox", "bestlootbox", "godbox"} {
		table, ok := BoxTable(id)
		if !ok {
			t.Fatalf("missing box table for %q", id)
		}
		prev := 0.0
		for i, band := range table {
			if band.Limit <= prev {
				t.Fatalf("%s band %d limit %v does not advance past %v", id, i, band.Limit, prev)
			}
			prev = band.Limit
			for _, drop := range band.Drops {
				if _, ok := ItemByID(drop.ItemID); !ok {
					t.Fatalf("%s drops unknown item %q", id, drop.ItemID)
				}
			}
		}
		if prev != 1.0 {
			t.Fatalf("%s bands end at %v, want 1.0", id, prev)
		}
		if _, isItem := ItemByID(id); !isItem {
			t.Fatalf("box %q is not itself a catalog item", id)
		}
	}
}

func TestFishTableShape(t *testing.T) {
	total := 0.0
	for _, f := range FishTypes {
		if f.MinSize <= 0 || f.MaxSize < f.MinSize {
			t.Fatalf("fish %q has invalid size range [%d,%d]", f.Name, f.MinSize, f.MaxSize)
		}
		if f.Weight <= 0 {
			t.Fatalf("fish %q has non-positive weight", f.Name)
		}
		total += f.Weight
	}
	if total <= 0 {
		t.Fatalf("fish weights sum to %v", total)
	}
}

func TestFishValueCurve(t *testing.T) {
	if got := FishValue(1); got != 100 {
		t.Fatalf("FishValue(1) = %d, want 100", got)
	}
	// The curve is exponential: doubling the size more than doubles the
	// marginal value at the top of the range.
	small := FishValue(10) - FishValue(1)
	big := FishValue(1080) - FishValue(1071)
	if big <= small {
		t.Fatalf("expected exponential growth, got delta %d at small sizes vs %d at large", small, big)
	}
}

func TestActionKinds(t *testing.T) {
	for _, k := range ActionKinds() {
		if !k.Valid() {
			t.Fatalf("action %q reported invalid", k)
		}
		if k.Cooldown() <= 0 {
			t.Fatalf("action %q has no cooldown", k)
		}
	}
	if ActionKind("dance").Valid() {
		t.Fatalf("unknown action kind accepted")
	}
	if ActionStake.Cooldown() <= ActionBeg.Cooldown() {
		t.Fatalf("stake should cool down longer than beg")
	}
}

func TestRewardForLevel(t *testing.T) {
	if r := RewardForLevel(1); r.Coins != 50_000 {
		t.Fatalf("level 1 coins = %d", r.Coins)
	}
	if r := RewardForLevel(2); r.Coins != 0 || len(r.Items) != 0 {
		t.Fatalf("level 2 should pay nothing, got %+v", r)
	}
	if r := RewardForLevel(22); r.Coins != 180_000_000 {
		t.Fatalf("level 22 coins = %d, want 180000000", r.Coins)
	}
	for level := 1; level <= 21; level++ {
		for _, st := range RewardForLevel(level).Items {
			if _, ok := ItemByID(st.ItemID); !ok {
				t.Fatalf("level %d reward references unknown item %q", level, st.ItemID)
			}
		}
	}
}

func TestXPForLevel(t *testing.T) {
	if got := XPForLevel(1); got != 30 {
		t.Fatalf("XPForLevel(1) = %d, want 30", got)
	}
	if XPForLevel(10) <= XPForLevel(9) {
		t.Fatalf("xp requirement must grow with level")
	}
}
