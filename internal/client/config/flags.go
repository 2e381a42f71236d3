package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the server API
//	-d string   local state database path
//	-t int      request timeout in seconds
//	-r int      max retries for idempotent requests
//	-i int      online check interval in seconds
//
// os.Args is filtered with flagx.FilterArgs so -c/-config do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-r", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the linkkeeper API")
	fs.StringVar(&cfg.StatePath, "d", cfg.StatePath, "path of the local state database")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "retries for idempotent requests")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
