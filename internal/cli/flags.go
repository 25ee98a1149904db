package cli

import (
	"flag"
	"io"
)

// ScanFlags are the flags for the transfer-scan command
type ScanFlags struct {
	ConfigPath string
	Scope      string
	Commit     bool
	AcceptAll  bool
	Verbose    bool
}

// ParseScanFlags parses transfer-scan flags from args (without the program name)
func ParseScanFlags(args []string, output io.Writer) (*ScanFlags, error) {
	fs := flag.NewFlagSet("transfer-scan", flag.ContinueOnError)
	fs.SetOutput(output)

	flags := &ScanFlags{}
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path (default: config.yaml, then environment)")
	fs.StringVar(&flags.Scope, "scope", "default", "Scope whose checked range is tracked")
	fs.BoolVar(&flags.Commit, "commit", false, "Mark the scanned range as checked")
	fs.BoolVar(&flags.AcceptAll, "accept-all", false, "Link every candidate (implies -commit)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.AcceptAll {
		flags.Commit = true
	}
	return flags, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses transfer-api flags from args (without the program name)
func ParseServeFlags(args []string, output io.Writer) (*ServeFlags, error) {
	fs := flag.NewFlagSet("transfer-api", flag.ContinueOnError)
	fs.SetOutput(output)

	flags := &ServeFlags{}
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path (default: config.yaml, then environment)")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (0 = from config)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
