// Package notify turns reconciled trader state into chat notifications. A
// single consumer drains a bounded queue so message ordering per trader is
// preserved and the scheduler never blocks on delivery.
package notify

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/hyperwatch/errs"
	"github.com/coachpo/hyperwatch/internal/observability"
	"github.com/coachpo/hyperwatch/internal/schema"
	"github.com/coachpo/hyperwatch/internal/telemetry"
)

// Sender delivers one rendered message. replyTo threads the message under an
// earlier one when non-zero; the returned id identifies the sent message.
type Sender interface {
	Send(ctx context.Context, text string, replyTo int64) (int64, error)
}

// Item is one unit of work: a deep-cloned trader and the fills that changed it.
type Item struct {
	Trader  *schema.Trader
	Fills   []schema.FillEvent
	TraceID string
}

type threadKey struct {
	address string
	coin    string
}

// Dispatcher consumes enqueued items and sends one message per affected
// instrument, threading follow-ups under the first message for that
// trader/instrument pair.
type Dispatcher struct {
	sender  Sender
	queue   chan Item
	metrics *telemetry.Metrics
	sleep   func(time.Duration)
	threads map[threadKey]int64
}

// NewDispatcher constructs a dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Item, queueSize),
		sleep:   time.Sleep,
		threads: make(map[threadKey]int64),
	}
}

// WithMetrics attaches the metric instruments.
func (d *Dispatcher) WithMetrics(m *telemetry.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Enqueue offers an item without blocking. It reports false when the queue is
// full; the caller decides whether a drop is worth logging.
func (d *Dispatcher) Enqueue(trader *schema.Trader, fills []schema.FillEvent) bool {
	item := Item{Trader: trader, Fills: fills, TraceID: uuid.NewString()}
	select {
	case d.queue <- item:
		d.metrics.QueueDelta(context.Background(), 1)
		return true
	default:
		return false
	}
}

// Run drains the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-d.queue:
			d.metrics.QueueDelta(ctx, -1)
			d.dispatch(ctx, item)
		}
	}
}

// dispatch renders and sends one message per instrument touched by the item's
// fills. Send failures are logged and skipped; the next poll cycle produces a
// fresh message.
func (d *Dispatcher) dispatch(ctx context.Context, item Item) {
	for _, coin := range affectedCoins(item.Fills) {
		fills := fillsFor(item.Fills, coin)
		pos := item.Trader.Position(coin)
		key := threadKey{address: item.Trader.Address, coin: coin}
		replyTo := d.threads[key]

		// A fill from zero re-opens the position: start a fresh thread and
		// re-root the pair on the new message instead of replying under the
		// closed position's thread.
		if startsFromZero(fills) {
			replyTo = 0
		}

		text := renderFillMessage(item.Trader, pos, fills, replyTo == 0)
		id, err := d.sendWithRetry(ctx, text, replyTo)
		if err != nil {
			observability.Log().Error("send notification",
				observability.Field{Key: "trader", Value: item.Trader.Address},
				observability.Field{Key: "coin", Value: coin},
				observability.Field{Key: "trace", Value: item.TraceID},
				observability.Field{Key: "error", Value: err})
			continue
		}
		d.metrics.NotificationSent(ctx)
		if replyTo == 0 {
			d.threads[key] = id
		}
	}
}

// sendWithRetry sends once and, on a rate-limit response, waits the advised
// delay and retries exactly once. Any other failure is returned as is.
func (d *Dispatcher) sendWithRetry(ctx context.Context, text string, replyTo int64) (int64, error) {
	id, err := d.sender.Send(ctx, text, replyTo)
	if err == nil {
		return id, nil
	}
	delay, ok := errs.RateLimited(err)
	if !ok {
		return 0, err
	}
	observability.Log().Info("rate limited, retrying once",
		observability.Field{Key: "delay", Value: delay})
	d.metrics.RateLimitRetry(ctx)
	d.sleep(delay)
	return d.sender.Send(ctx, text, replyTo)
}

func affectedCoins(fills []schema.FillEvent) []string {
	seen := make(map[string]struct{}, len(fills))
	coins := make([]string, 0, len(fills))
	for _, ev := range fills {
		if _, ok := seen[ev.Coin]; ok {
			continue
		}
		seen[ev.Coin] = struct{}{}
		coins = append(coins, ev.Coin)
	}
	sort.Strings(coins)
	return coins
}

func fillsFor(fills []schema.FillEvent, coin string) []schema.FillEvent {
	out := make([]schema.FillEvent, 0, len(fills))
	for _, ev := range fills {
		if ev.Coin == coin {
			out = append(out, ev)
		}
	}
	return out
}
