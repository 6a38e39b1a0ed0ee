package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestSortedPair(t *testing.T) {
	cases := []struct {
		a, b, first, second string
	}{
		{"alice", "bob", "alice", "bob"},
		{"bob", "alice", "alice", "bob"},
		{"same", "same", "same", "same"},
	}
	for _, tc := range cases {
		first, second := sortedPair(tc.a, tc.b)
		if first != tc.first || second != tc.second {
			t.Fatalf("sortedPair(%q, %q) = %q, %q", tc.a, tc.b, first, second)
		}
	}
}

func TestTotalPrice(t *testing.T) {
	if got, err := TotalPrice(100, 5); err != nil || got != 500 {
		t.Fatalf("TotalPrice(100, 5) = %d, %v", got, err)
	}
	if got, err := TotalPrice(0, 5); err != nil || got != 0 {
		t.Fatalf("TotalPrice(0, 5) = %d, %v", got, err)
	}
	if _, err := TotalPrice(math.MaxInt64, 2); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if got, err := TotalPrice(math.MaxInt64, 1); err != nil || got != math.MaxInt64 {
		t.Fatalf("max price at qty 1 should pass, got %d, %v", got, err)
	}
}

func TestPocketColumn(t *testing.T) {
	if col, err := PocketWallet.column(); err != nil || col != "wallet" {
		t.Fatalf("wallet column = %q, %v", col, err)
	}
	if col, err := PocketBank.column(); err != nil || col != "bank" {
		t.Fatalf("bank column = %q, %v", col, err)
	}
	if _, err := Pocket("mattress").column(); err == nil {
		t.Fatalf("unknown pocket must error")
	}
}
