package command

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/config"
	"github.com/coachpo/hyperwatch/internal/notify/telegram"
	"github.com/coachpo/hyperwatch/internal/schema"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeChat struct {
	mu      sync.Mutex
	sent    []string
	updates [][]telegram.Update
}

func (f *fakeChat) Send(_ context.Context, text string, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return int64(len(f.sent)), nil
}

func (f *fakeChat) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChat) GetUpdates(ctx context.Context, _ int64, _ time.Duration) ([]telegram.Update, error) {
	if len(f.updates) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

type fakeTracker struct {
	traders  []*schema.Trader
	replaced [][]*schema.Trader
}

func (f *fakeTracker) Snapshot(context.Context) ([]*schema.Trader, error) {
	return f.traders, nil
}

func (f *fakeTracker) ReplaceTraders(traders []*schema.Trader) {
	f.replaced = append(f.replaced, traders)
}

type fakeSource struct {
	rows []schema.LeaderboardRow
}

func (f *fakeSource) Leaderboard(context.Context) ([]schema.LeaderboardRow, error) {
	return f.rows, nil
}

func newController(t *testing.T, chat *fakeChat, tracker *fakeTracker, source *fakeSource) *Controller {
	t.Helper()
	store, err := config.NewStore(config.Default())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewController(chat, -100, store, tracker, source)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{name: "long flags", in: "--roi 50 --pnl 1000", want: map[string]string{"roi": "50", "pnl": "1000"}},
		{name: "short flags", in: "-r 50 -p 1000", want: map[string]string{"r": "50", "p": "1000"}},
		{name: "bare flag", in: "--verbose --roi 50", want: map[string]string{"verbose": "true", "roi": "50"}},
		{name: "stray value ignored", in: "stray --roi 50", want: map[string]string{"roi": "50"}},
		{name: "trailing flag", in: "--roi", want: map[string]string{"roi": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseArgs(strings.Fields(tt.in))
			if len(got) != len(tt.want) {
				t.Fatalf("parseArgs() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("args[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestSplitCommandStripsMention(t *testing.T) {
	cmd, args := splitCommand("/refresh@hyperwatch_bot --roi 50 --pnl 100")
	if cmd != "/refresh" {
		t.Errorf("cmd = %q", cmd)
	}
	if args["roi"] != "50" || args["pnl"] != "100" {
		t.Errorf("args = %v", args)
	}
}

func TestRefreshRequiresRoiAndPnl(t *testing.T) {
	chat := &fakeChat{}
	tracker := &fakeTracker{}
	ctrl := newController(t, chat, tracker, &fakeSource{})

	ctrl.refresh(context.Background(), parseArgs([]string{"--roi", "50"}))

	if len(tracker.replaced) != 0 {
		t.Error("incomplete refresh must not replace traders")
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], "/refresh --roi") {
		t.Errorf("expected usage reply, got %v", chat.sent)
	}
}

func TestRefreshReplacesTraders(t *testing.T) {
	chat := &fakeChat{}
	tracker := &fakeTracker{}
	source := &fakeSource{rows: []schema.LeaderboardRow{
		{
			Address: "0x1",
			Performance: map[string]schema.WindowPerformance{
				"week": {Pnl: d("5000"), Roi: d("0.8")},
			},
		},
		{
			Address: "0x2",
			Performance: map[string]schema.WindowPerformance{
				"week": {Pnl: d("100"), Roi: d("0.8")},
			},
		},
	}}
	ctrl := newController(t, chat, tracker, source)

	ctrl.refresh(context.Background(), parseArgs([]string{"--roi", "50", "--pnl", "1000", "--per", "week"}))

	if len(tracker.replaced) != 1 {
		t.Fatalf("replacements = %d, want 1", len(tracker.replaced))
	}
	if len(tracker.replaced[0]) != 1 || tracker.replaced[0][0].Address != "0x1" {
		t.Errorf("unexpected selection: %+v", tracker.replaced[0])
	}
	selection := ctrl.store.Snapshot()
	if selection.Timeframe != "week" || !selection.MinRoi.Equal(d("50")) {
		t.Errorf("store not updated: %+v", selection)
	}
	if !strings.Contains(chat.sent[len(chat.sent)-1], "tracking 1") {
		t.Errorf("missing confirmation: %v", chat.sent)
	}
}

func TestRefreshDefaultsTimeframeToDay(t *testing.T) {
	chat := &fakeChat{}
	ctrl := newController(t, chat, &fakeTracker{}, &fakeSource{})

	ctrl.refresh(context.Background(), parseArgs([]string{"--roi", "50", "--pnl", "1000"}))

	if tf := ctrl.store.Snapshot().Timeframe; tf != "day" {
		t.Errorf("timeframe = %q, want day", tf)
	}
}

func TestHandleIgnoresOtherChats(t *testing.T) {
	chat := &fakeChat{}
	ctrl := newController(t, chat, &fakeTracker{}, &fakeSource{})

	ctrl.handle(context.Background(), telegram.Update{ChatID: -999, Text: "/help"})
	if len(chat.sent) != 0 {
		t.Error("commands from foreign chats must be ignored")
	}

	ctrl.handle(context.Background(), telegram.Update{ChatID: -100, Text: "/help"})
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], "/refresh") {
		t.Errorf("help reply missing: %v", chat.sent)
	}
}

func TestRunAdvancesOffsetAndStops(t *testing.T) {
	chat := &fakeChat{updates: [][]telegram.Update{
		{{ID: 5, ChatID: -100, Text: "/help"}},
	}}
	ctrl := newController(t, chat, &fakeTracker{}, &fakeSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for chat.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("help reply never sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err == nil {
		t.Error("Run must return the context error")
	}
}
