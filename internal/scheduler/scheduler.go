// Package scheduler drives the poll cycle: fetch fills since each trader's
// watermark, fold them into the ledger, correct against the authoritative
// snapshot, classify resting orders and hand the result to the dispatcher.
package scheduler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/coachpo/hyperwatch/internal/ledger"
	"github.com/coachpo/hyperwatch/internal/observability"
	"github.com/coachpo/hyperwatch/internal/schema"
	"github.com/coachpo/hyperwatch/internal/telemetry"
)

// Exchange is the slice of the venue client the scheduler needs.
type Exchange interface {
	FillsSince(ctx context.Context, address string, since time.Time) ([]schema.FillEvent, error)
	Positions(ctx context.Context, address string) ([]schema.PositionSnapshot, error)
	OpenOrders(ctx context.Context, address string) ([]schema.OpenOrder, error)
}

// Sink receives reconciled trader state for notification. Enqueue must not
// block; it reports whether the item was accepted.
type Sink interface {
	Enqueue(trader *schema.Trader, fills []schema.FillEvent) bool
}

// Config bounds the poll cadence.
type Config struct {
	// PollInterval is the delay between full passes over the tracked traders.
	PollInterval time.Duration
	// TraderDelay paces requests between consecutive traders within a pass.
	TraderDelay time.Duration
}

// Runner owns the tracked trader set. All ledger mutation happens on the
// Run goroutine; the dispatcher only ever sees deep clones.
type Runner struct {
	exchange Exchange
	sink     Sink
	metrics  *telemetry.Metrics
	limiter  *rate.Limiter
	interval time.Duration
	clock    func() time.Time

	// replace carries trader-set swaps from ReplaceTraders onto the Run
	// goroutine so the set is only touched between poll passes.
	replace chan []*schema.Trader

	traders    []*schema.Trader
	watermarks map[string]time.Time
	snapshots  chan chan []*schema.Trader
}

// New constructs a Runner over the initial trader set.
func New(exchange Exchange, sink Sink, traders []*schema.Trader, cfg Config) *Runner {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	delay := cfg.TraderDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Runner{
		exchange:   exchange,
		sink:       sink,
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
		interval:   interval,
		clock:      time.Now,
		replace:    make(chan []*schema.Trader, 1),
		traders:    traders,
		watermarks: make(map[string]time.Time),
		snapshots:  make(chan chan []*schema.Trader),
	}
}

// WithMetrics attaches the metric instruments.
func (r *Runner) WithMetrics(m *telemetry.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithClock overrides the internal clock, primarily for testing.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// Bootstrap seeds every tracked trader with an authoritative snapshot and a
// classified order book, and starts each watermark at the current time so
// historical fills are never replayed. No notifications are produced. A
// trader whose seed fetch fails stays tracked with empty state; the first
// poll cycle with fills corrects it. Only context cancellation aborts.
func (r *Runner) Bootstrap(ctx context.Context) error {
	now := r.clock()
	for _, trader := range r.traders {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := r.seedTrader(ctx, trader); err != nil {
			observability.Log().Error("bootstrap trader",
				observability.Field{Key: "trader", Value: trader.Address},
				observability.Field{Key: "error", Value: err})
			r.metrics.FetchFailure(ctx, "bootstrap")
		}
		r.watermarks[trader.Address] = now
	}
	return nil
}

func (r *Runner) seedTrader(ctx context.Context, trader *schema.Trader) error {
	snaps, err := r.exchange.Positions(ctx, trader.Address)
	if err != nil {
		return err
	}
	ledger.ApplySnapshot(trader, snaps)

	orders, err := r.exchange.OpenOrders(ctx, trader.Address)
	if err != nil {
		return err
	}
	ledger.Classify(ctx, trader, orders, r.refresher())
	for _, pos := range trader.Positions {
		pos.Modified = false
	}
	return nil
}

// Run executes poll passes until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next := <-r.replace:
			r.swapTraders(ctx, next)
		case reply := <-r.snapshots:
			reply <- r.cloneAll()
		case <-ticker.C:
			r.pollAll(ctx)
		}
	}
}

// ReplaceTraders swaps the tracked trader set. Addresses already tracked keep
// their reconstructed state and watermark; new ones are bootstrapped on the
// Run goroutine before the next pass. A pending unconsumed swap is replaced.
func (r *Runner) ReplaceTraders(traders []*schema.Trader) {
	for {
		select {
		case r.replace <- traders:
			return
		default:
		}
		select {
		case <-r.replace:
		default:
		}
	}
}

// Snapshot returns deep clones of the tracked traders, sorted by descending
// PnL. It blocks until the Run goroutine services the request.
func (r *Runner) Snapshot(ctx context.Context) ([]*schema.Trader, error) {
	reply := make(chan []*schema.Trader, 1)
	select {
	case r.snapshots <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case traders := <-reply:
		return traders, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runner) cloneAll() []*schema.Trader {
	clones := make([]*schema.Trader, 0, len(r.traders))
	for _, trader := range r.traders {
		clones = append(clones, schema.CloneTrader(trader))
	}
	sort.SliceStable(clones, func(i, j int) bool {
		return clones[i].Pnl.GreaterThan(clones[j].Pnl)
	})
	return clones
}

func (r *Runner) swapTraders(ctx context.Context, next []*schema.Trader) {
	current := make(map[string]*schema.Trader, len(r.traders))
	for _, trader := range r.traders {
		current[trader.Address] = trader
	}

	now := r.clock()
	merged := make([]*schema.Trader, 0, len(next))
	kept := make(map[string]struct{}, len(next))
	for _, trader := range next {
		if existing, ok := current[trader.Address]; ok {
			existing.Name = trader.Name
			existing.Pnl = trader.Pnl
			existing.Roi = trader.Roi
			merged = append(merged, existing)
			kept[trader.Address] = struct{}{}
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := r.seedTrader(ctx, trader); err != nil {
			observability.Log().Error("bootstrap replacement trader",
				observability.Field{Key: "trader", Value: trader.Address},
				observability.Field{Key: "error", Value: err})
			r.metrics.FetchFailure(ctx, "bootstrap")
			continue
		}
		r.watermarks[trader.Address] = now
		merged = append(merged, trader)
		kept[trader.Address] = struct{}{}
	}

	for address := range current {
		if _, ok := kept[address]; !ok {
			delete(r.watermarks, address)
		}
	}
	r.traders = merged
	observability.Log().Info("tracked trader set replaced",
		observability.Field{Key: "traders", Value: len(merged)})
}

func (r *Runner) pollAll(ctx context.Context) {
	for _, trader := range r.traders {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		r.pollTrader(ctx, trader)
	}
}

// pollTrader runs one reconciliation cycle for a single trader. The watermark
// only advances after a successful fill fetch, so a failed cycle re-fetches
// the same window next pass.
func (r *Runner) pollTrader(ctx context.Context, trader *schema.Trader) {
	since := r.watermarks[trader.Address]
	now := r.clock()

	fills, err := r.exchange.FillsSince(ctx, trader.Address, since)
	if err != nil {
		observability.Log().Error("fetch fills",
			observability.Field{Key: "trader", Value: trader.Address},
			observability.Field{Key: "error", Value: err})
		r.metrics.FetchFailure(ctx, "fills")
		return
	}
	r.watermarks[trader.Address] = now

	if len(fills) == 0 {
		return
	}

	for _, pos := range trader.Positions {
		pos.Modified = false
	}
	for _, ev := range fills {
		pos := trader.Position(ev.Coin)
		if pos == nil {
			pos = schema.NewFlatPosition(ev.Coin)
			trader.SetPosition(ev.Coin, pos)
		}
		ledger.ApplyFill(pos, ev)
		r.metrics.FillsApplied(ctx, 1, ev.Coin)
	}

	if snaps, err := r.exchange.Positions(ctx, trader.Address); err != nil {
		observability.Log().Error("fetch snapshot",
			observability.Field{Key: "trader", Value: trader.Address},
			observability.Field{Key: "error", Value: err})
		r.metrics.FetchFailure(ctx, "positions")
	} else {
		ledger.ApplySnapshot(trader, snaps)
		r.metrics.SnapshotApplied(ctx)
	}

	if orders, err := r.exchange.OpenOrders(ctx, trader.Address); err != nil {
		observability.Log().Error("fetch open orders",
			observability.Field{Key: "trader", Value: trader.Address},
			observability.Field{Key: "error", Value: err})
		r.metrics.FetchFailure(ctx, "orders")
	} else {
		ledger.Classify(ctx, trader, orders, r.refresher())
	}

	if !r.sink.Enqueue(schema.CloneTrader(trader), fills) {
		observability.Log().Error("notification dropped, queue full",
			observability.Field{Key: "trader", Value: trader.Address})
		r.metrics.QueueDropped(ctx)
	}
}

func (r *Runner) refresher() ledger.Refresher {
	return ledger.RefresherFunc(func(ctx context.Context, trader *schema.Trader) error {
		snaps, err := r.exchange.Positions(ctx, trader.Address)
		if err != nil {
			return err
		}
		ledger.ApplySnapshot(trader, snaps)
		return nil
	})
}
