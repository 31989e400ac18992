package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SettingKey enumerates the runtime-tunable settings.
type SettingKey string

const (
	// KeyMinPnl is the minimum PnL threshold, a decimal string.
	KeyMinPnl SettingKey = "min_pnl"
	// KeyMinRoi is the minimum ROI threshold in percent, a decimal string.
	KeyMinRoi SettingKey = "min_roi"
	// KeyTimeframe is the leaderboard window.
	KeyTimeframe SettingKey = "timeframe"
	// KeyLimit is the maximum number of tracked traders.
	KeyLimit SettingKey = "limit"
	// KeyPollInterval is the delay between poll passes.
	KeyPollInterval SettingKey = "poll_interval"
)

// Selection is the parsed runtime view of the selection settings.
type Selection struct {
	Timeframe    string
	MinPnl       decimal.Decimal
	MinRoi       decimal.Decimal
	Limit        int
	PollInterval time.Duration
}

// Store holds the mutable selection settings behind a mutex so the command
// surface can tune them while the scheduler reads them.
type Store struct {
	mu        sync.RWMutex
	selection Selection
}

// NewStore parses the configured selection thresholds into a runtime store.
func NewStore(cfg AppConfig) (*Store, error) {
	minPnl, err := decimal.NewFromString(cfg.Selection.MinPnl)
	if err != nil {
		return nil, fmt.Errorf("config: invalid min_pnl %q: %w", cfg.Selection.MinPnl, err)
	}
	minRoi, err := decimal.NewFromString(cfg.Selection.MinRoi)
	if err != nil {
		return nil, fmt.Errorf("config: invalid min_roi %q: %w", cfg.Selection.MinRoi, err)
	}
	return &Store{selection: Selection{
		Timeframe:    cfg.Selection.Timeframe,
		MinPnl:       minPnl,
		MinRoi:       minRoi,
		Limit:        cfg.Selection.Limit,
		PollInterval: cfg.Scheduler.PollInterval.Value(),
	}}, nil
}

// Snapshot returns the current selection settings.
func (s *Store) Snapshot() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// Update applies one setting change. Values are validated before the store
// mutates, so a rejected update leaves the previous value intact.
func (s *Store) Update(key SettingKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case KeyMinPnl:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid min_pnl %q: %w", value, err)
		}
		s.selection.MinPnl = parsed
	case KeyMinRoi:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid min_roi %q: %w", value, err)
		}
		s.selection.MinRoi = parsed
	case KeyTimeframe:
		s.selection.Timeframe = value
	case KeyLimit:
		var limit int
		if _, err := fmt.Sscan(value, &limit); err != nil || limit <= 0 {
			return fmt.Errorf("invalid limit %q", value)
		}
		s.selection.Limit = limit
	case KeyPollInterval:
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid poll_interval %q", value)
		}
		s.selection.PollInterval = parsed
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
