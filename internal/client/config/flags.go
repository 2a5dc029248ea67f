package config

import (
	"flag"
	"os"
	"time"

	"github.com/JustWint3r/SecureShare/internal/flagx"
)

// Flags lists every flag the CLI configuration consumes, including the JSON
// config path. Anything else on the command line is the command itself.
var Flags = []string{"-c", "-config", "-a", "-s", "-u", "-t", "-w"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-s string   JWT HMAC secret key
//	-u string   actor ID to act as
//	-t int      access token validity, minutes
//	-w int      per-call timeout, seconds
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-u", "-t", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.StringVar(&cfg.User, "u", cfg.User, "actor ID")
	tokenValidity := fs.Int("t", int(cfg.TokenValidity.Minutes()), "access token validity (in minutes)")
	callTimeout := fs.Int("w", int(cfg.CallTimeout.Seconds()), "call timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TokenValidity = time.Duration(*tokenValidity) * time.Minute
	cfg.CallTimeout = time.Duration(*callTimeout) * time.Second
}
