// Package command implements the chat control surface: it long-polls for
// bot commands and answers from scheduler state snapshots.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coachpo/hyperwatch/internal/config"
	"github.com/coachpo/hyperwatch/internal/leaderboard"
	"github.com/coachpo/hyperwatch/internal/notify/telegram"
	"github.com/coachpo/hyperwatch/internal/observability"
	"github.com/coachpo/hyperwatch/internal/schema"
)

// Tracker exposes the scheduler operations the command surface needs.
type Tracker interface {
	Snapshot(ctx context.Context) ([]*schema.Trader, error)
	ReplaceTraders(traders []*schema.Trader)
}

// LeaderboardSource fetches raw leaderboard rows for re-selection.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]schema.LeaderboardRow, error)
}

// Chat is the slice of the bot client used for commands.
type Chat interface {
	Send(ctx context.Context, text string, replyTo int64) (int64, error)
	GetUpdates(ctx context.Context, offset int64, window time.Duration) ([]telegram.Update, error)
}

const pollWindow = 30 * time.Second

const helpText = `Available commands:
💬 Update tracked traders
/refresh --roi <percent> --pnl <usd> --per <day|week|month|allTime>

💬 Active positions of the tracked set
/active

💬 Long vs Short overview
/longshort --range <1|2>
  1: all coins together, 2: per coin

💬 BTC vs Altcoins volume
/volume

💬 Flat positions waiting on resting orders
/sniper`

// Controller routes inbound chat commands.
type Controller struct {
	chat    Chat
	chatID  int64
	store   *config.Store
	tracker Tracker
	source  LeaderboardSource
}

// NewController constructs the command controller bound to one chat.
func NewController(chat Chat, chatID int64, store *config.Store, tracker Tracker, source LeaderboardSource) *Controller {
	return &Controller{
		chat:    chat,
		chatID:  chatID,
		store:   store,
		tracker: tracker,
		source:  source,
	}
}

// Run long-polls for updates until the context is cancelled. Poll failures
// are logged and retried after a short pause.
func (c *Controller) Run(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := c.chat.GetUpdates(ctx, offset, pollWindow)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.Log().Error("poll updates",
				observability.Field{Key: "error", Value: err})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			if update.ID >= offset {
				offset = update.ID + 1
			}
			c.handle(ctx, update)
		}
	}
}

func (c *Controller) handle(ctx context.Context, update telegram.Update) {
	if update.ChatID != c.chatID || !strings.HasPrefix(update.Text, "/") {
		return
	}
	cmd, args := splitCommand(update.Text)
	observability.Log().Debug("command received",
		observability.Field{Key: "command", Value: cmd},
		observability.Field{Key: "from", Value: update.From})

	switch cmd {
	case "/help":
		c.reply(ctx, helpText)
	case "/refresh":
		c.refresh(ctx, args)
	case "/active":
		c.active(ctx, false)
	case "/sniper":
		c.active(ctx, true)
	case "/volume":
		c.volume(ctx)
	case "/longshort":
		c.longShort(ctx, args)
	}
}

// refresh re-tunes the selection thresholds and swaps the tracked trader set.
// Both --roi and --pnl are required; --per is optional and defaults to day.
func (c *Controller) refresh(ctx context.Context, args map[string]string) {
	roi, hasRoi := argValue(args, "roi", "r")
	pnl, hasPnl := argValue(args, "pnl", "p")
	if !hasRoi || !hasPnl {
		c.reply(ctx, "/refresh --roi <value> --pnl <value> --per <period>")
		return
	}

	timeframe := leaderboard.TimeframeDay
	if per, ok := argValue(args, "per", "t"); ok && leaderboard.ValidTimeframe(per) {
		timeframe = per
	}

	if err := c.store.Update(config.KeyMinRoi, roi); err != nil {
		c.reply(ctx, "invalid --roi: "+err.Error())
		return
	}
	if err := c.store.Update(config.KeyMinPnl, pnl); err != nil {
		c.reply(ctx, "invalid --pnl: "+err.Error())
		return
	}
	if err := c.store.Update(config.KeyTimeframe, timeframe); err != nil {
		c.reply(ctx, "invalid --per: "+err.Error())
		return
	}

	rows, err := c.source.Leaderboard(ctx)
	if err != nil {
		c.reply(ctx, "❌ leaderboard fetch failed: "+err.Error())
		return
	}
	selection := c.store.Snapshot()
	traders := leaderboard.Select(rows, leaderboard.Criteria{
		Timeframe: selection.Timeframe,
		MinPnl:    selection.MinPnl,
		MinRoi:    selection.MinRoi,
		Limit:     selection.Limit,
	})
	c.tracker.ReplaceTraders(traders)
	c.reply(ctx, fmt.Sprintf("✔ Traders refreshed: tracking %d", len(traders)))
}

// active prints every tracked position. With waitsOnly set, only flat
// positions that still carry resting orders are listed.
func (c *Controller) active(ctx context.Context, waitsOnly bool) {
	traders, err := c.tracker.Snapshot(ctx)
	if err != nil {
		c.reply(ctx, "❌ snapshot failed: "+err.Error())
		return
	}
	text := renderActive(traders, waitsOnly)
	if text == "" {
		c.reply(ctx, "No positions")
		return
	}
	for _, chunk := range chunkMessage(text) {
		c.reply(ctx, chunk)
	}
}

func (c *Controller) volume(ctx context.Context) {
	traders, err := c.tracker.Snapshot(ctx)
	if err != nil {
		c.reply(ctx, "❌ snapshot failed: "+err.Error())
		return
	}
	text := renderVolume(traders)
	if text == "" {
		c.reply(ctx, "❌ No active positions found")
		return
	}
	c.reply(ctx, text)
}

func (c *Controller) longShort(ctx context.Context, args map[string]string) {
	traders, err := c.tracker.Snapshot(ctx)
	if err != nil {
		c.reply(ctx, "❌ snapshot failed: "+err.Error())
		return
	}
	perCoin := false
	if v, ok := argValue(args, "range", "r"); ok && v == "2" {
		perCoin = true
	}
	text := renderLongShort(traders, perCoin)
	if text == "" {
		c.reply(ctx, "No positions")
		return
	}
	for _, chunk := range chunkMessage(text) {
		c.reply(ctx, chunk)
	}
}

func (c *Controller) reply(ctx context.Context, text string) {
	if _, err := c.chat.Send(ctx, text, 0); err != nil {
		observability.Log().Error("send command reply",
			observability.Field{Key: "error", Value: err})
	}
}

// splitCommand separates the command verb from its arguments and strips a
// trailing @botname mention.
func splitCommand(text string) (string, map[string]string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, parseArgs(fields[1:])
}

// parseArgs reads "--key value" and "-k value" pairs. A flag without a value
// maps to "true".
func parseArgs(fields []string) map[string]string {
	args := make(map[string]string)
	var key string
	for _, part := range fields {
		switch {
		case strings.HasPrefix(part, "--"):
			if key != "" {
				args[key] = "true"
			}
			key = part[2:]
		case strings.HasPrefix(part, "-") && len(part) == 2:
			if key != "" {
				args[key] = "true"
			}
			key = part[1:]
		default:
			if key == "" {
				continue
			}
			args[key] = part
			key = ""
		}
	}
	if key != "" {
		args[key] = "true"
	}
	return args
}

func argValue(args map[string]string, long, short string) (string, bool) {
	if v, ok := args[long]; ok {
		return v, true
	}
	v, ok := args[short]
	return v, ok
}
