package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/leetstat/internal/cli"
	"github.com/okian/leetstat/internal/config"
	"github.com/okian/leetstat/pkg/logger"
)

func main() {
	var (
		force   = flag.Bool("force", false, "Refetch even when cached data is fresh")
		offline = flag.Bool("offline", false, "Read the cache only; never call upstream")
		compare = flag.Bool("compare", false, "Rank the usernames by total solved")
		drop    = flag.Bool("clear", false, "Drop cached records of the usernames (all when none given)")
		days    = flag.Int("days", cli.DefaultDays, "Contribution window length")
		asJSON  = flag.Bool("json", false, "Print JSON instead of text")
		timeout = flag.Duration("timeout", cli.DefaultTimeout, "Overall deadline")
		logFile = flag.String("log", "", "Also append logs to this file")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		cli.ShowHelp(os.Stdout)
		return
	}

	closer, err := cli.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	mode, err := cli.ParseMode(*offline, *compare, *drop)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	opts := cli.Options{
		Usernames: flag.Args(),
		Mode:      mode,
		Force:     *force,
		Days:      *days,
		JSON:      *asJSON,
		Timeout:   *timeout,
		Logger:    logger.Get(),
	}
	if err := cli.Run(ctx, cfg, opts, os.Stdout, time.Now()); err != nil {
		os.Stderr.WriteString("leetstat-cli: " + err.Error() + "\n")
		os.Exit(1)
	}
}
