// Command transfer-api serves the transfer scan review API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eshaffer321/transferscan/internal/cli"
)

func main() {
	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	flags, err := cli.ParseServeFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
