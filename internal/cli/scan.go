package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/infrastructure/config"
	"github.com/eshaffer321/transferscan/internal/infrastructure/logging"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// RunScan runs one review cycle from the terminal.
//
// Without -commit the cycle is a preview: candidates are printed and the
// cycle is abandoned. With -commit the range is marked checked, and with
// -accept-all every candidate is linked first.
func RunScan(ctx context.Context, cfg *config.Config, flags *ScanFlags, out io.Writer) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "scan")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc := review.NewService(store, ReviewConfig(cfg), logger, nil)
	return runCycle(ctx, svc, flags, out)
}

func runCycle(ctx context.Context, svc *review.Service, flags *ScanFlags, out io.Writer) error {
	PrintHeader(out, flags.Scope, flags.Commit)

	cycle, err := svc.StartCycle(ctx, flags.Scope)
	if err != nil {
		return err
	}
	PrintStatus(out, cycle.Summary)

	if cycle.ID == "" {
		if cycle.Summary.Progress.Error != "" {
			return fmt.Errorf("scan not possible: %s", cycle.Summary.Progress.Error)
		}
		return nil
	}

	PrintCandidates(out, cycle.Candidates)

	if !flags.Commit {
		if err := svc.Abandon(ctx, cycle.ID); err != nil {
			return err
		}
		PrintDecision(out, cycle, 0)
		return nil
	}

	decisions := review.Decisions{MarkChecked: true}
	for _, c := range cycle.Candidates {
		if flags.AcceptAll {
			decisions.Accepted = append(decisions.Accepted, c.Key())
		} else {
			decisions.Rejected = append(decisions.Rejected, c.Key())
		}
	}

	decided, err := svc.Decide(ctx, cycle.ID, decisions)
	if err != nil {
		return err
	}
	PrintDecision(out, decided, len(decisions.Accepted))
	return nil
}
