package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "hoard/internal/cli"
	"hoard/internal/config"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	account := cfg.Account

	root := &cobra.Command{
		Use:          "hrd",
		Short:        "Hoard economy client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")
	root.PersistentFlags().StringVar(&account, "account", account, "account id (or HOARD_ACCOUNT)")

	root.AddCommand(
		newBalanceCmd(&apiBase, &account),
		newInventoryCmd(&apiBase, &account),
		newNetWorthCmd(&apiBase, &account),
		newLevelCmd(&apiBase, &account),
		newBadgesCmd(&apiBase, &account),
		newLogCmd(&apiBase, &account),
		newShopCmd(&apiBase),
		newItemCmd(&apiBase),
		newMarketCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newActCmd(&apiBase, &account),
		newSearchCmd(&apiBase, &account),
		newOpenCmd(&apiBase, &account),
		newCrownCmd(&apiBase, &account),
		newDepositCmd(&apiBase, &account),
		newWithdrawCmd(&apiBase, &account),
		newBuyCmd(&apiBase, &account),
		newSellCmd(&apiBase, &account),
		newPayCmd(&apiBase, &account),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireAccount(account *string) (string, error) {
	a := strings.TrimSpace(*account)
	if a == "" {
		return "", fmt.Errorf("account id required: pass --account or set HOARD_ACCOUNT")
	}
	return a, nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newBalanceCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show wallet and bank balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Balance(ctx, a)
			if err != nil {
				return err
			}
			printBalance(out)
			return nil
		},
	}
}

func newInventoryCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:     "inv",
		Aliases: []string{"inventory"},
		Short:   "Show held items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Inventory(ctx, a)
			if err != nil {
				return err
			}
			printInventory(out)
			return nil
		},
	}
}

func newNetWorthCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "networth",
		Short: "Show total valuation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).NetWorth(ctx, a)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Net worth: %s coins", formatAmount(out["net_worth"])))
			return nil
		},
	}
}

func newLevelCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "level",
		Short: "Show level and experience",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Level(ctx, a)
			if err != nil {
				return err
			}
			printLevel(out)
			return nil
		},
	}
}

func newBadgesCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "Show earned badges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Badges(ctx, a)
			if err != nil {
				return err
			}
			printBadges(out)
			return nil
		},
	}
}

func newLogCmd(apiBase, account *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Journal(ctx, a, limit)
			if err != nil {
				return err
			}
			printJournal(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop",
		Short: "List shop items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Shop(ctx)
			if err != nil {
				return err
			}
			printShop(out)
			return nil
		},
	}
}

func newItemCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "item <id>",
		Short: "Show one item, with the live price for the dynamic one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).ItemDetail(ctx, args[0])
			if err != nil {
				return err
			}
			printItem(out)
			return nil
		},
	}
}

func newMarketCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show recent stock prices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).MarketHistory(ctx, limit)
			if err != nil {
				return err
			}
			printMarketHistory(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of ticks")
	return cmd
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	var item string
	cmd := &cobra.Command{
		Use:     "lb",
		Aliases: []string{"leaderboard"},
		Short:   "Show the net-worth leaderboard (or --item holders)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			var (
				out map[string]any
				err error
			)
			if item != "" {
				out, err = client.ItemLeaderboard(ctx, item, limit)
			} else {
				out, err = client.Leaderboard(ctx, limit)
			}
			if err != nil {
				return err
			}
			printLeaderboard(out, item)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows")
	cmd.Flags().StringVar(&item, "item", "", "rank holders of one item instead")
	return cmd
}

func newActCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:       "act <beg|fetch|fish|hunt|stake>",
		Short:     "Perform a cooldown-gated action",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"beg", "fetch", "fish", "hunt", "stake"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Act(ctx, a, args[0], "")
			if err != nil {
				return err
			}
			printActionResult(out)
			return nil
		},
	}
}

func newSearchCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search [location]",
		Short: "Search a location; omit the location to see the offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			client := newClient(apiBase)

			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			if location == "" {
				ctx, cancel := cmdContext(cmd)
				out, err := client.Act(ctx, a, "search", "")
				cancel()
				if err != nil {
					return err
				}
				printSearchOffers(out)
				chosen, err := promptRequired("Where to")
				if err != nil {
					return err
				}
				location = chosen
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := client.Act(ctx, a, "search", location)
			if err != nil {
				return err
			}
			printActionResult(out)
			return nil
		},
	}
}

func newOpenCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <box>",
		Short: "Open a loot box from the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).OpenBox(ctx, a, args[0])
			if err != nil {
				return err
			}
			printBoxResult(out)
			return nil
		},
	}
}

func newCrownCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crown",
		Short: "Use a crown and hope it transforms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).UseCrown(ctx, a)
			if err != nil {
				return err
			}
			if upgraded, _ := out["upgraded"].(bool); upgraded {
				printSuccess("The crown glows... it became an enchanted crown!")
			} else {
				printWarn("The crown crumbled to dust.")
			}
			return nil
		},
	}
}

func newDepositCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Move coins from wallet to bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pocketMove(cmd, apiBase, account, args[0], true)
		},
	}
}

func newWithdrawCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Move coins from bank to wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pocketMove(cmd, apiBase, account, args[0], false)
		},
	}
}

func pocketMove(cmd *cobra.Command, apiBase, account *string, raw string, deposit bool) error {
	a, err := requireAccount(account)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer")
	}
	ctx, cancel := cmdContext(cmd)
	defer cancel()
	client := newClient(apiBase)
	var out map[string]any
	if deposit {
		out, err = client.Deposit(ctx, a, amount)
	} else {
		out, err = client.Withdraw(ctx, a, amount)
	}
	if err != nil {
		return err
	}
	printBalance(out)
	return nil
}

func newBuyCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <item> [qty]",
		Short: "Buy from the shop (asks for confirmation)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return proposeAndConfirm(cmd, apiBase, account, func(a string, qty int64) map[string]any {
				return map[string]any{"kind": "buy", "account": a, "item_id": args[0], "quantity": qty}
			}, args)
		},
	}
}

func newSellCmd(apiBase, account *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <item> [qty]",
		Short: "Sell from the inventory (asks for confirmation)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return proposeAndConfirm(cmd, apiBase, account, func(a string, qty int64) map[string]any {
				return map[string]any{"kind": "sell", "account": a, "item_id": args[0], "quantity": qty}
			}, args)
		},
	}
}

func newPayCmd(apiBase, account *string) *cobra.Command {
	var item string
	cmd := &cobra.Command{
		Use:   "pay <to> <amount>",
		Short: "Pay coins (or --item to gift items) to another account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireAccount(account)
			if err != nil {
				return err
			}
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("amount must be a positive integer")
			}
			body := map[string]any{"kind": "pay_coins", "account": a, "to": args[0], "amount": n}
			if item != "" {
				body = map[string]any{"kind": "pay_item", "account": a, "to": args[0], "item_id": item, "quantity": n}
			}
			return runProposal(cmd, apiBase, body)
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "gift this item instead of coins")
	return cmd
}

func proposeAndConfirm(cmd *cobra.Command, apiBase, account *string, build func(a string, qty int64) map[string]any, args []string) error {
	a, err := requireAccount(account)
	if err != nil {
		return err
	}
	qty := int64(1)
	if len(args) == 2 {
		if qty, err = strconv.ParseInt(args[1], 10, 64); err != nil || qty <= 0 {
			return fmt.Errorf("quantity must be a positive integer")
		}
	}
	return runProposal(cmd, apiBase, build(a, qty))
}

func runProposal(cmd *cobra.Command, apiBase *string, body map[string]any) error {
	ctx, cancel := cmdContext(cmd)
	defer cancel()
	client := newClient(apiBase)

	p, err := client.Propose(ctx, body)
	if err != nil {
		return err
	}
	printProposal(p)

	answer, err := promptRequired("Confirm (yes/no)")
	if err != nil {
		return err
	}
	decision := "no"
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		decision = "yes"
	}
	id, _ := p["id"].(string)
	_, err = client.Confirm(ctx, id, decision)
	if decision == "no" {
		// The server reports a declined proposal as an error; the decline
		// itself is what the user asked for.
		printWarn("Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	printSuccess("Done.")
	return nil
}
