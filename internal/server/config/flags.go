package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/showroom/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      share token validity, minutes
//	-k string   key-value backend ("dynamodb" or "memory")
//	-l string   log level
//
// Args are filtered with flagx.FilterArgs first so that -c/-config and
// foreign flags do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-t", "-k", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP API")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenMinutes := fs.Int("t", int(config.ShareTokenValidityDuration.Minutes()), "share token validity (in minutes)")
	fs.StringVar(&config.KVBackend, "k", config.KVBackend, "key-value backend: dynamodb or memory")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.ShareTokenValidityDuration = time.Duration(*tokenMinutes) * time.Minute
		}
	})
	return nil
}
