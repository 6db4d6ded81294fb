package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/folio/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the API server
//	-f string   local database file
//	-t int      request timeout in seconds
//
// Arguments are filtered with flagx.FilterArgs first so unrelated flags do
// not trip the parser.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "API base URL")
	fs.StringVar(&cfg.LocalDBPath, "f", cfg.LocalDBPath, "local database file")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
