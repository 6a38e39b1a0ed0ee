// Package bot is the Discord front-end. It parses prefix commands,
// drives the same economy and transfer services as the HTTP API, and
// renders the structured outcomes as chat replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"hoard/internal/catalog"
	"hoard/internal/economy"
	"hoard/internal/ledger"
	"hoard/internal/transfer"
)

type Bot struct {
	session *discordgo.Session
	prefix  string
	log     *slog.Logger

	store   *ledger.Service
	economy *economy.Service
	deals   *transfer.Coordinator

	mu      sync.Mutex
	pending map[string]uuid.UUID // channelID:userID -> proposal awaiting yes/no
}

func New(token, prefix string, store *ledger.Service, eco *economy.Service, deals *transfer.Coordinator, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		prefix:  prefix,
		log:     logger,
		store:   store,
		economy: eco,
		deals:   deals,
		pending: make(map[string]uuid.UUID),
	}
	session.AddHandler(b.onMessage)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.log.Info("bot connected", "prefix", b.prefix)
	<-ctx.Done()
	return b.session.Close()
}

func pendingKey(channelID, userID string) string {
	return channelID + ":" + userID
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	content := strings.TrimSpace(m.Content)

	// A bare yes/no resolves this user's pending proposal in this channel.
	if answer, ok := parseDecision(content); ok {
		if b.resolvePending(ctx, s, m, answer) {
			return
		}
	}

	if !strings.HasPrefix(content, b.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.prefix))
	if len(fields) == 0 {
		return
	}
	command, args := strings.ToLower(fields[0]), fields[1:]
	account := m.Author.ID

	var err error
	switch command {
	case "balance", "bal":
		err = b.cmdBalance(ctx, s, m, account)
	case "shop":
		err = b.cmdShop(ctx, s, m)
	case "inv", "inventory":
		err = b.cmdInventory(ctx, s, m, account)
	case "networth", "worth":
		err = b.cmdNetWorth(ctx, s, m, account)
	case "level":
		err = b.cmdLevel(ctx, s, m, account)
	case "log":
		err = b.cmdJournal(ctx, s, m, account)
	case "lb", "leaderboard":
		err = b.cmdLeaderboard(ctx, s, m, args)
	case "beg", "fetch", "fish", "hunt", "stake":
		err = b.cmdAction(ctx, s, m, account, catalog.ActionKind(command), "")
	case "search":
		err = b.cmdSearch(ctx, s, m, account, args)
	case "open":
		err = b.cmdOpen(ctx, s, m, account, args)
	case "crown":
		err = b.cmdCrown(ctx, s, m, account)
	case "deposit", "dep":
		err = b.cmdPocketMove(ctx, s, m, account, args, true)
	case "withdraw", "with":
		err = b.cmdPocketMove(ctx, s, m, account, args, false)
	case "buy":
		err = b.cmdBuy(ctx, s, m, account, args)
	case "sell":
		err = b.cmdSell(ctx, s, m, account, args)
	case "pay":
		err = b.cmdPay(ctx, s, m, account, args)
	default:
		return
	}
	if err != nil {
		b.replyError(s, m, err)
	}
}

func parseDecision(content string) (accept, ok bool) {
	switch strings.ToLower(content) {
	case "yes", "y":
		return true, true
	case "no", "n":
		return false, true
	}
	return false, false
}

// resolvePending confirms or declines the user's pending proposal.
// Returns false when there was nothing pending, so the message falls
// through to normal command parsing.
func (b *Bot) resolvePending(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, accept bool) bool {
	key := pendingKey(m.ChannelID, m.Author.ID)
	b.mu.Lock()
	id, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	p, err := b.deals.Confirm(ctx, id, accept)
	switch {
	case errors.Is(err, transfer.ErrProposalDeclined):
		b.reply(s, m, "Cancelled.")
	case errors.Is(err, transfer.ErrProposalExpired):
		b.reply(s, m, "That offer expired.")
	case err != nil:
		b.replyError(s, m, err)
	default:
		b.reply(s, m, renderCommitted(p))
	}
	return true
}

func (b *Bot) stash(channelID, userID string, id uuid.UUID) {
	b.mu.Lock()
	b.pending[pendingKey(channelID, userID)] = id
	b.mu.Unlock()
}

func (b *Bot) cmdBalance(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	wallet, bank, err := b.store.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	b.reply(s, m, fmt.Sprintf("Wallet: **%s** | Bank: **%s**", group(wallet), group(bank)))
	return nil
}

func (b *Bot) cmdShop(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) error {
	var sb strings.Builder
	sb.WriteString("**Shop**\n")
	for _, it := range catalog.Items() {
		if !it.Buyable {
			continue
		}
		price := it.Price
		if it.Dynamic {
			p, err := b.store.StockPrice(ctx)
			if err != nil {
				return err
			}
			price = p
		}
		fmt.Fprintf(&sb, "`%s` %s: %s\n", it.ID, it.Name, group(price))
	}
	b.reply(s, m, sb.String())
	return nil
}

func (b *Bot) cmdInventory(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	inv, err := b.store.GetInventory(ctx, account)
	if err != nil {
		return err
	}
	if len(inv) == 0 {
		b.reply(s, m, "Your inventory is empty.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("**Inventory**\n")
	for _, st := range inv {
		fmt.Fprintf(&sb, "`%s` x%d\n", st.ItemID, st.Quantity)
	}
	b.reply(s, m, sb.String())
	return nil
}

func (b *Bot) cmdNetWorth(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	worth, err := b.store.NetWorth(ctx, account)
	if err != nil {
		return err
	}
	b.reply(s, m, fmt.Sprintf("Net worth: **%s** coins", group(worth)))
	return nil
}

func (b *Bot) cmdLevel(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	lv, err := b.store.LevelData(ctx, account)
	if err != nil {
		return err
	}
	b.reply(s, m, fmt.Sprintf("Level **%d**: %s/%s XP", lv.Level, group(lv.Experience), group(lv.NextLevelXP)))
	return nil
}

func (b *Bot) cmdJournal(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	entries, err := b.store.Journal(ctx, account, 10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		b.reply(s, m, "No transactions yet.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("**Recent transactions**\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "`%s` %s\n", e.Label, group(e.Amount))
	}
	b.reply(s, m, sb.String())
	return nil
}

func (b *Bot) cmdLeaderboard(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) error {
	var (
		rows []ledger.Rank
		err  error
	)
	title := "**Net worth leaderboard**"
	if len(args) > 0 {
		item := args[0]
		if _, ok := catalog.ItemByID(item); !ok {
			b.reply(s, m, "No such item.")
			return nil
		}
		rows, err = b.store.ItemLeaderboard(ctx, item, 10)
		title = fmt.Sprintf("**Top holders of %s**", item)
	} else {
		rows, err = b.store.Leaderboard(ctx, 10)
	}
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(title + "\n")
	for i, r := range rows {
		fmt.Fprintf(&sb, "%d. <@%s>: %s\n", i+1, r.Account, group(r.Value))
	}
	b.reply(s, m, sb.String())
	return nil
}

func (b *Bot) cmdAction(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, kind catalog.ActionKind, location string) error {
	res, err := b.economy.PerformAction(ctx, account, kind, location)
	if err != nil {
		return err
	}
	b.reply(s, m, renderAction(res))
	return nil
}

func (b *Bot) cmdSearch(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string) error {
	if len(args) == 0 {
		locs, err := b.economy.OfferSearch(ctx, account, 3)
		if err != nil {
			return err
		}
		var sb strings.Builder
		sb.WriteString("Where do you want to search?\n")
		for _, loc := range locs {
			mark := ""
			if loc.Risky {
				mark = " ⚠"
			}
			fmt.Fprintf(&sb, "`%ssearch %s`: %s%s\n", b.prefix, loc.ID, loc.Description, mark)
		}
		b.reply(s, m, sb.String())
		return nil
	}
	return b.cmdAction(ctx, s, m, account, catalog.ActionSearch, args[0])
}

func (b *Bot) cmdOpen(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string) error {
	if len(args) == 0 {
		b.reply(s, m, "Usage: `"+b.prefix+"open <box>`")
		return nil
	}
	res, err := b.economy.OpenBox(ctx, account, args[0])
	if err != nil {
		return err
	}
	if len(res.Drops) == 0 {
		b.reply(s, m, "The box was empty. Better luck next time.")
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You opened a `%s` and got:\n", res.Box)
	for _, st := range res.Drops {
		fmt.Fprintf(&sb, "`%s` x%d\n", st.ItemID, st.Quantity)
	}
	b.reply(s, m, sb.String())
	return nil
}

func (b *Bot) cmdCrown(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string) error {
	upgraded, err := b.economy.UseCrown(ctx, account)
	if err != nil {
		return err
	}
	if upgraded {
		b.reply(s, m, "The crown glows... it became an **enchanted crown**!")
	} else {
		b.reply(s, m, "The crown crumbled to dust.")
	}
	return nil
}

func (b *Bot) cmdPocketMove(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string, deposit bool) error {
	if len(args) == 0 {
		return ledger.ErrInvalidAmount
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ledger.ErrInvalidAmount
	}
	if deposit {
		err = b.store.Deposit(ctx, account, amount)
	} else {
		err = b.store.Withdraw(ctx, account, amount)
	}
	if err != nil {
		return err
	}
	return b.cmdBalance(ctx, s, m, account)
}

func (b *Bot) cmdBuy(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string) error {
	item, qty, err := itemAndQty(args)
	if err != nil {
		return err
	}
	p, err := b.deals.ProposeBuy(ctx, account, item, qty)
	if err != nil {
		return err
	}
	b.stash(m.ChannelID, m.Author.ID, p.ID)
	b.reply(s, m, fmt.Sprintf("Buy **%d x %s** for **%s** coins? Reply `yes` or `no`.", p.Quantity, p.ItemID, group(p.Total)))
	return nil
}

func (b *Bot) cmdSell(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string) error {
	item, qty, err := itemAndQty(args)
	if err != nil {
		return err
	}
	p, err := b.deals.ProposeSell(ctx, account, item, qty)
	if err != nil {
		return err
	}
	b.stash(m.ChannelID, m.Author.ID, p.ID)
	b.reply(s, m, fmt.Sprintf("Sell **%d x %s** for **%s** coins? Reply `yes` or `no`.", p.Quantity, p.ItemID, group(p.Total)))
	return nil
}

func (b *Bot) cmdPay(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, account string, args []string) error {
	// pay @user <amount> | pay @user <item> <qty>
	if len(args) < 2 {
		b.reply(s, m, "Usage: `"+b.prefix+"pay @user <amount>` or `"+b.prefix+"pay @user <item> <qty>`")
		return nil
	}
	to := parseMention(args[0])
	if to == "" {
		b.reply(s, m, "Mention who you want to pay.")
		return nil
	}

	if amount, err := strconv.ParseInt(args[1], 10, 64); err == nil {
		p, err := b.deals.ProposePayCoins(ctx, account, to, amount)
		if err != nil {
			return err
		}
		b.stash(m.ChannelID, m.Author.ID, p.ID)
		b.reply(s, m, fmt.Sprintf("Send **%s** coins to <@%s>? Reply `yes` or `no`.", group(p.Total), to))
		return nil
	}

	qty := int64(1)
	if len(args) >= 3 {
		n, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return ledger.ErrInvalidAmount
		}
		qty = n
	}
	p, err := b.deals.ProposePayItem(ctx, account, to, args[1], qty)
	if err != nil {
		return err
	}
	b.stash(m.ChannelID, m.Author.ID, p.ID)
	b.reply(s, m, fmt.Sprintf("Give **%d x %s** to <@%s>? Reply `yes` or `no`.", p.Quantity, p.ItemID, to))
	return nil
}

func itemAndQty(args []string) (string, int64, error) {
	if len(args) == 0 {
		return "", 0, transfer.ErrInvalidItem
	}
	qty := int64(1)
	if len(args) >= 2 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", 0, ledger.ErrInvalidAmount
		}
		qty = n
	}
	return args[0], qty, nil
}

func parseMention(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimSuffix(s, ">")
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}

func renderAction(res economy.ActionResult) string {
	if res.Penalty {
		return fmt.Sprintf("You got robbed and lost **%s** coins!", group(res.Lost))
	}
	if !res.Success {
		return "No luck this time."
	}
	if res.Fish != nil {
		return fmt.Sprintf("You caught a **%s** (size %d) worth **%s** coins!", res.Fish.Name, res.Fish.Size, group(res.Fish.Value))
	}
	msg := fmt.Sprintf("You earned **%s** coins", group(res.Coins))
	if res.Patron != "" {
		msg += " from " + res.Patron
	}
	msg += "."
	for _, st := range res.Loot {
		msg += fmt.Sprintf("\n+ `%s` x%d", st.ItemID, st.Quantity)
	}
	return msg
}

func renderCommitted(p transfer.Proposal) string {
	switch p.Kind {
	case transfer.KindBuy:
		return fmt.Sprintf("Bought **%d x %s** for **%s** coins.", p.Quantity, p.ItemID, group(p.Total))
	case transfer.KindSell:
		return fmt.Sprintf("Sold **%d x %s** for **%s** coins.", p.Quantity, p.ItemID, group(p.Total))
	case transfer.KindPayCoins:
		return fmt.Sprintf("Sent **%s** coins to <@%s>.", group(p.Total), p.To)
	case transfer.KindPayItem:
		return fmt.Sprintf("Gave **%d x %s** to <@%s>.", p.Quantity, p.ItemID, p.To)
	}
	return "Done."
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		b.log.Error("send reply failed", "err", err)
	}
}

func (b *Bot) replyError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	var cd *economy.CooldownError
	if errors.As(err, &cd) {
		b.reply(s, m, fmt.Sprintf("Slow down! `%s` unlocks in **%s**.", cd.Kind, cd.Remaining))
		return
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		b.reply(s, m, "You can't afford that.")
	case errors.Is(err, ledger.ErrInsufficientItems):
		b.reply(s, m, "You don't have enough of that item.")
	case errors.Is(err, ledger.ErrInvalidAmount):
		b.reply(s, m, "That amount doesn't make sense.")
	case errors.Is(err, ledger.ErrSameAccount):
		b.reply(s, m, "You can't pay yourself.")
	case errors.Is(err, transfer.ErrInvalidItem), errors.Is(err, economy.ErrNotABox), errors.Is(err, economy.ErrUnknownLocation):
		b.reply(s, m, "No such thing.")
	case errors.Is(err, transfer.ErrItemNotBuyable):
		b.reply(s, m, "That item isn't for sale.")
	case errors.Is(err, transfer.ErrItemNotSellable):
		b.reply(s, m, "That item can't be sold.")
	case errors.Is(err, transfer.ErrMarketUnavailable):
		b.reply(s, m, "The market is too low to buy right now.")
	default:
		b.log.Error("command failed", "err", err)
		b.reply(s, m, "Something went wrong, try again.")
	}
}

// group formats an amount with thousands separators.
func group(n int64) string {
	s := strconv.FormatInt(n, 10)
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
