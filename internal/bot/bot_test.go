package bot

import (
	"errors"
	"testing"

	"hoard/internal/ledger"
)

func TestParseMention(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<@123456>", "123456"},
		{"<@!123456>", "123456"},
		{"123456", "123456"},
		{"<@abc>", ""},
		{"@everyone", ""},
	}
	for _, tc := range cases {
		if got := parseMention(tc.in); got != tc.want {
			t.Fatalf("parseMention(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if accept, ok := parseDecision("Yes"); !ok || !accept {
		t.Fatalf("Yes should accept")
	}
	if accept, ok := parseDecision("n"); !ok || accept {
		t.Fatalf("n should decline")
	}
	if _, ok := parseDecision("maybe"); ok {
		t.Fatalf("maybe is not a decision")
	}
}

func TestItemAndQty(t *testing.T) {
	item, qty, err := itemAndQty([]string{"beard"})
	if err != nil || item != "beard" || qty != 1 {
		t.Fatalf("bare item should default qty 1, got %q %d %v", item, qty, err)
	}
	item, qty, err = itemAndQty([]string{"beard", "3"})
	if err != nil || item != "beard" || qty != 3 {
		t.Fatalf("explicit qty, got %q %d %v", item, qty, err)
	}
	if _, _, err := itemAndQty([]string{"beard", "lots"}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("non-numeric qty must fail, got %v", err)
	}
	if _, _, err := itemAndQty(nil); err == nil {
		t.Fatalf("missing item must fail")
	}
}

func TestGroupFormatting(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-50000, "-50,000"},
	}
	for _, tc := range cases {
		if got := group(tc.in); got != tc.want {
			t.Fatalf("group(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
