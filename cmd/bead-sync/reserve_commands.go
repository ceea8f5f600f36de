package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/0xmhha/bead-sync/pkg/config"
	"github.com/0xmhha/bead-sync/pkg/display"
	"github.com/0xmhha/bead-sync/pkg/ledger"
	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/mailbox"
	"github.com/0xmhha/bead-sync/pkg/registry"
)

// openLedger builds the reservation ledger with its mailbox collaborator.
func openLedger(cfg *config.Config, log logger.Logger) (ledger.Ledger, error) {
	mb := mailbox.NewReader(cfg.Messages.Dir, log)

	l, err := ledger.New(ledger.Config{
		Dir:           cfg.Ledger.Dir,
		MinTTLMinutes: cfg.Ledger.MinTTLMinutes,
		MaxTTLMinutes: cfg.Ledger.MaxTTLMinutes,
	}, mb, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	return l, nil
}

// resolveAgent maps an agent name to its registered ID when possible.
// Unregistered identifiers pass through unchanged so the ledger works
// without the registry.
func resolveAgent(cfg *config.Config, log logger.Logger, agent string) string {
	reg, err := registry.New(registry.Config{DBPath: cfg.Registry.DBPath}, log)
	if err != nil {
		log.Debug("registry unavailable, using agent identifier as-is",
			"error", err)
		return agent
	}
	defer func() {
		if closeErr := reg.Close(); closeErr != nil {
			log.Warn("failed to close registry", "error", closeErr)
		}
	}()

	if rec, lookupErr := reg.GetByName(agent); lookupErr == nil {
		return rec.ID
	}

	return agent
}

// runReserveCommand runs the reserve command.
func runReserveCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("reserve", flag.ExitOnError)
	agent := fs.String("agent", "", "agent ID or name (required)")
	scope := fs.String("scope", "", "file scope to claim (required)")
	issue := fs.String("issue", "", "issue the claim is for")
	ttl := fs.Int("ttl", 30, "lease length in minutes")
	takeover := fs.Bool("takeover", false, "claim a scope whose previous reservation expired")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agent == "" || *scope == "" {
		return fmt.Errorf("reserve requires -agent and -scope")
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	l, err := openLedger(cfg, log)
	if err != nil {
		return err
	}

	r, err := l.Reserve(resolveAgent(cfg, log, *agent), *scope, *issue, *ttl, *takeover)
	if err != nil {
		return describeLedgerError(err)
	}

	fmt.Printf("Reserved %s for %s until %s (id %s)\n",
		r.Scope, *agent, r.ExpiresAt.Format("2006-01-02 15:04:05"), r.ID)
	return nil
}

// runReleaseCommand runs the release command.
func runReleaseCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("release", flag.ExitOnError)
	agent := fs.String("agent", "", "agent ID or name (required)")
	scope := fs.String("scope", "", "scope to release (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agent == "" || *scope == "" {
		return fmt.Errorf("release requires -agent and -scope")
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	l, err := openLedger(cfg, log)
	if err != nil {
		return err
	}

	if err := l.Release(resolveAgent(cfg, log, *agent), *scope); err != nil {
		return describeLedgerError(err)
	}

	fmt.Printf("Released %s\n", *scope)
	return nil
}

// runStatusCommand runs the status command.
func runStatusCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	agent := fs.String("agent", "", "filter by agent")
	issue := fs.String("issue", "", "filter by issue")
	format := fs.String("format", "table", "output format (table, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	l, err := openLedger(cfg, log)
	if err != nil {
		return err
	}

	filter := ledger.Filter{IssueID: *issue}
	if *agent != "" {
		filter.AgentID = resolveAgent(cfg, log, *agent)
	}

	report, err := l.Status(filter)
	if err != nil {
		return describeLedgerError(err)
	}

	formatter := display.New(display.Config{Format: display.Format(*format)})
	if err := formatter.FormatReservations(os.Stdout, report.Active); err != nil {
		return err
	}

	for _, msg := range report.PendingAcks {
		fmt.Printf("Pending ack: %s -> %s: %s\n", msg.Sender, msg.ToAgent, msg.Body)
	}

	return nil
}

// describeLedgerError keeps the structured code visible to scripts while
// staying readable for humans.
func describeLedgerError(err error) error {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		return fmt.Errorf("%s", lerr.Error())
	}
	return err
}
