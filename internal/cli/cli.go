// Package cli implements leetstat-cli: a terminal front end over the same
// coordinator, cache and widget read path the server uses.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/leetstat/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging sends logs to stderr, and also to logFile when set, so
// stdout stays reserved for the report.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	_ = logger.SetLevelString(level)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseMode maps the mutually exclusive mode flags to a Mode.
func ParseMode(offline, compare, clearCache bool) (Mode, error) {
	var set []string
	mode := ModeFetch
	if offline {
		set, mode = append(set, "-offline"), ModeOffline
	}
	if compare {
		set, mode = append(set, "-compare"), ModeCompare
	}
	if clearCache {
		set, mode = append(set, "-clear"), ModeClear
	}
	if len(set) > 1 {
		return "", fmt.Errorf("%s cannot be combined", strings.Join(set, " and "))
	}
	return mode, nil
}

// ShowHelp prints usage information for leetstat-cli.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `leetstat-cli
============

Print LeetCode statistics for one or more usernames using the same cache
as the leetstat server. Storage and upstream settings come from the usual
LEETSTAT_* environment variables, .env, or LEETSTAT_CONFIG.

Usage:
  leetstat-cli [options] username [username...]

Options:
  -force
        Refetch even when cached data is fresh
  -offline
        Read the cache only; never call upstream
  -compare
        Rank the usernames by total solved
  -clear
        Drop cached records of the usernames (all records when none given)
  -days int
        Contribution window length (default 7)
  -json
        Print JSON instead of text
  -timeout duration
        Overall deadline (default 2m)
  -log string
        Also append logs to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  leetstat-cli alice
  leetstat-cli -offline -days 30 alice
  leetstat-cli -compare alice bob carol
  LEETSTAT_STORE_BACKEND=redis leetstat-cli -clear alice
`)
}
