package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-r string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-m string   session material backend: file, s3 or bolt
//	-f string   session material directory (file backend)
//	-o string   bolt database path (bolt backend)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x int      messaging network timeout, seconds
//	-l int      unverified material TTL, minutes
//	-i int      Telegram app id
//	-k string   Telegram app hash
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-r", "-d", "-s", "-t", "-m", "-f", "-o", "-u", "-p", "-b", "-g", "-e", "-x", "-l", "-i", "-k",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.GRPCHealthAddr, "r", config.GRPCHealthAddr, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.MaterialBackend, "m", config.MaterialBackend, "session material backend (file, s3, bolt)")
	fs.StringVar(&config.MaterialDir, "f", config.MaterialDir, "session material directory")
	fs.StringVar(&config.BoltPath, "o", config.BoltPath, "bolt database path")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	externalTimeout := fs.Int("x", int(config.ExternalTimeout.Seconds()), "messaging network timeout (in seconds)")
	unverifiedTTL := fs.Int("l", int(config.UnverifiedTTL.Minutes()), "unverified session material TTL (in minutes)")

	fs.IntVar(&config.TelegramAPIID, "i", config.TelegramAPIID, "Telegram app id")
	fs.StringVar(&config.TelegramAPIHash, "k", config.TelegramAPIHash, "Telegram app hash")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// durations are only replaced when given explicitly, so that sub-unit
	// values from JSON or the environment survive the integer round trip
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "x":
			config.ExternalTimeout = time.Duration(*externalTimeout) * time.Second
		case "l":
			config.UnverifiedTTL = time.Duration(*unverifiedTTL) * time.Minute
		}
	})
}
