package cli

import (
	"time"

	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/pkg/logger"
)

// Mode selects what Run does with the usernames.
type Mode string

// Modes.
const (
	// ModeFetch runs cache-or-fetch for every username and prints a summary.
	ModeFetch Mode = "fetch"
	// ModeOffline reads the persistent cache only.
	ModeOffline Mode = "offline"
	// ModeCompare prints the peer comparison of the usernames.
	ModeCompare Mode = "compare"
	// ModeClear drops the cached records of the usernames, or all of them.
	ModeClear Mode = "clear"
)

// Default option values.
const (
	DefaultDays    = 7
	DefaultTimeout = 2 * time.Minute
)

// Options holds the command line settings of one invocation.
type Options struct {
	Usernames []string      // Usernames to act on
	Mode      Mode          // What to do
	Force     bool          // Refetch even when cached data is fresh
	Days      int           // Length of the contribution window
	JSON      bool          // Emit JSON instead of text
	Timeout   time.Duration // Overall deadline
	Logger    logger.Logger // Nil discards logs
}

// Report is the per-username result of fetch and offline runs.
type Report struct {
	Username    string                    `json:"username"`
	Snapshot    *model.Snapshot           `json:"snapshot,omitempty"`
	Recent      []model.DailyContribution `json:"recent,omitempty"`
	RecentTotal int                       `json:"recentTotal"`
	Error       string                    `json:"error,omitempty"`
}
