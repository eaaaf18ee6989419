package config

import (
	"flag"
	"os"
	"time"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//
// Duration flags are accepted as integers in minutes and then converted
// to time.Duration values.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddrHTTP, "a", cfg.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")

	accessMinutes := fs.Int("t", int(cfg.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	// Unknown flags are left for other components; parse errors are not fatal.
	_ = fs.Parse(filterKnownArgs(os.Args[1:], []string{"-a", "-d", "-r", "-s", "-t"}))

	cfg.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
}

// filterKnownArgs keeps only the flags (and their values) this component
// understands, so a shared command line does not break parsing.
func filterKnownArgs(args []string, known []string) []string {
	isKnown := func(a string) bool {
		for _, k := range known {
			if a == k {
				return true
			}
		}
		return false
	}

	var out []string
	for i := 0; i < len(args); i++ {
		if !isKnown(args[i]) {
			continue
		}
		out = append(out, args[i])
		if i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}
