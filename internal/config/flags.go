package config

import (
	"flag"

	"github.com/dmitrijs2005/gophdata/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-t string     database driver ("pgx" or "sqlite")
//	-d string     database DSN
//	-r duration   retention of soft-deleted rows (e.g. "720h")
//	-n int        cleanup batch size
//	-s string     cron schedule
//	-o bool       run once on start (use -o=true)
//	-l string     log level
//	-f string     log format ("text" or "json")
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-t", "-d", "-r", "-n", "-s", "-o", "-l", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDriver, "t", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.DurationVar(&config.CleanupRetention, "r", config.CleanupRetention, "retention of soft-deleted rows")
	fs.IntVar(&config.CleanupBatchSize, "n", config.CleanupBatchSize, "cleanup batch size")
	fs.StringVar(&config.CleanupSchedule, "s", config.CleanupSchedule, "cleanup cron schedule")
	fs.BoolVar(&config.RunOnStart, "o", config.RunOnStart, "run cleanup once on start")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
