package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) { success.Println(msg) }
func printWarn(msg string)    { warn.Println(msg) }

func promptRequired(label string) (string, error) {
	for {
		accent.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

func formatAmount(v any) string {
	n, ok := asInt64(v)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func printBalance(out map[string]any) {
	accent.Println("Balance")
	neutral.Printf("  wallet  %s\n", formatAmount(out["wallet"]))
	neutral.Printf("  bank    %s\n", formatAmount(out["bank"]))
}

func printInventory(out map[string]any) {
	items, _ := out["inventory"].([]any)
	if len(items) == 0 {
		printWarn("Inventory is empty.")
		return
	}
	accent.Println("Inventory")
	for _, raw := range items {
		row, _ := raw.(map[string]any)
		neutral.Printf("  %-20v x%s\n", row["item_id"], formatAmount(row["quantity"]))
	}
}

func printLevel(out map[string]any) {
	accent.Println("Progress")
	neutral.Printf("  level       %s\n", formatAmount(out["level"]))
	neutral.Printf("  experience  %s / %s\n", formatAmount(out["experience"]), formatAmount(out["next_level_xp"]))
	if n, ok := asInt64(out["rebirth_level"]); ok && n > 0 {
		neutral.Printf("  rebirths    %d\n", n)
	}
}

func printBadges(out map[string]any) {
	badges, _ := out["badges"].([]any)
	if len(badges) == 0 {
		printWarn("No badges yet.")
		return
	}
	accent.Println("Badges")
	for _, b := range badges {
		neutral.Printf("  %v\n", b)
	}
}

func printJournal(out map[string]any) {
	entries, _ := out["entries"].([]any)
	if len(entries) == 0 {
		printWarn("No transactions yet.")
		return
	}
	accent.Println("Recent transactions")
	for _, raw := range entries {
		row, _ := raw.(map[string]any)
		amount, _ := asInt64(row["amount"])
		line := fmt.Sprintf("  %-16v %s", row["label"], formatAmount(amount))
		if amount < 0 {
			warn.Println(line)
		} else {
			neutral.Println(line)
		}
	}
}

func printShop(out map[string]any) {
	items, _ := out["items"].([]any)
	accent.Println("Shop")
	for _, raw := range items {
		row, _ := raw.(map[string]any)
		flags := ""
		if b, _ := row["buyable"].(bool); b {
			flags += "B"
		}
		if s, _ := row["sellable"].(bool); s {
			flags += "S"
		}
		name := fmt.Sprintf("%v", row["name"])
		if d, _ := row["dynamic"].(bool); d {
			name += " (market)"
		}
		neutral.Printf("  %-16v %-24s %12s  %s\n", row["id"], name, formatAmount(row["price"]), flags)
	}
}

func printItem(out map[string]any) {
	accent.Printf("%v\n", out["name"])
	neutral.Printf("  id       %v\n", out["id"])
	neutral.Printf("  price    %s\n", formatAmount(out["price"]))
	if d, _ := out["dynamic"].(bool); d {
		neutral.Println("  price moves with the market")
	}
	neutral.Printf("  buyable  %v  sellable %v\n", out["buyable"], out["sellable"])
}

func printMarketHistory(out map[string]any) {
	prices, _ := out["prices"].([]any)
	if len(prices) == 0 {
		printWarn("No price history yet.")
		return
	}
	accent.Println("Stock price (newest first)")
	for _, p := range prices {
		neutral.Printf("  %s\n", formatAmount(p))
	}
}

func printLeaderboard(out map[string]any, item string) {
	rows, _ := out["rows"].([]any)
	if item != "" {
		accent.Printf("Top holders of %s\n", item)
	} else {
		accent.Println("Net worth leaderboard")
	}
	for i, raw := range rows {
		row, _ := raw.(map[string]any)
		neutral.Printf("  %2d. %-24v %s\n", i+1, row["account"], formatAmount(row["value"]))
	}
}

func printSearchOffers(out map[string]any) {
	locs, _ := out["locations"].([]any)
	accent.Println("You can search:")
	for _, raw := range locs {
		row, _ := raw.(map[string]any)
		suffix := ""
		if risky, _ := row["risky"].(bool); risky {
			suffix = "  !"
		}
		neutral.Printf("  %-12v %v%s\n", row["id"], row["description"], suffix)
	}
}

func printActionResult(out map[string]any) {
	if penalty, _ := out["penalty"].(bool); penalty {
		warn.Printf("You got robbed and lost %s coins!\n", formatAmount(out["lost"]))
		return
	}
	if ok, _ := out["success"].(bool); !ok {
		printWarn("No luck this time.")
		return
	}
	if fish, ok := out["fish"].(map[string]any); ok {
		success.Printf("You caught a %v (size %s) worth %s coins!\n",
			fish["Name"], formatAmount(fish["Size"]), formatAmount(fish["Value"]))
		return
	}
	msg := fmt.Sprintf("You earned %s coins", formatAmount(out["coins"]))
	if patron, _ := out["patron"].(string); patron != "" {
		msg += " from " + patron
	}
	success.Println(msg + ".")
	printLootList(out["loot"])
}

func printLootList(raw any) {
	loot, _ := raw.([]any)
	for _, l := range loot {
		row, _ := l.(map[string]any)
		success.Printf("  + %v x%s\n", row["item_id"], formatAmount(row["quantity"]))
	}
}

func printBoxResult(out map[string]any) {
	drops, _ := out["drops"].([]any)
	if len(drops) == 0 {
		printWarn("The box was empty.")
		return
	}
	success.Printf("Opened %v:\n", out["box"])
	printLootList(out["drops"])
}

func printProposal(p map[string]any) {
	accent.Println("Proposal")
	neutral.Printf("  kind      %v\n", p["kind"])
	if v, ok := p["item_id"]; ok && v != nil && v != "" {
		neutral.Printf("  item      %v x%s\n", v, formatAmount(p["quantity"]))
	}
	if v, ok := p["to"]; ok && v != nil && v != "" {
		neutral.Printf("  to        %v\n", v)
	}
	if n, ok := asInt64(p["unit_price"]); ok && n > 0 {
		neutral.Printf("  price     %s each\n", formatAmount(n))
	}
	neutral.Printf("  total     %s\n", formatAmount(p["total"]))
	neutral.Printf("  expires   %v\n", p["expires_at"])
}
