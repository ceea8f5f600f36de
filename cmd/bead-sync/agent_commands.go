package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/0xmhha/bead-sync/pkg/config"
	"github.com/0xmhha/bead-sync/pkg/display"
	"github.com/0xmhha/bead-sync/pkg/liveness"
	"github.com/0xmhha/bead-sync/pkg/registry"
)

// runAgentsCommand runs the agents command and its subcommands.
func runAgentsCommand(configPath string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("agents requires a subcommand: register, heartbeat, list, state")
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	reg, err := registry.New(registry.Config{DBPath: cfg.Registry.DBPath}, log)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer func() {
		if closeErr := reg.Close(); closeErr != nil {
			log.Error("failed to close registry", "error", closeErr)
		}
	}()

	switch args[0] {
	case "register":
		return agentsRegister(reg, args[1:])
	case "heartbeat":
		return agentsHeartbeat(reg, args[1:])
	case "list":
		return agentsList(cfg, reg, args[1:])
	case "state":
		return agentsState(reg, args[1:])
	default:
		return fmt.Errorf("unknown agents subcommand: %s", args[0])
	}
}

// agentsRegister registers a new agent by name.
func agentsRegister(reg registry.Registry, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: agents register <name>")
	}

	rec, err := reg.Register(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s (id %s)\n", rec.Name, rec.ID)
	return nil
}

// agentsHeartbeat refreshes an agent's last-seen timestamp. Any extra
// arguments are workspace roots whose telemetry marker gets touched.
func agentsHeartbeat(reg registry.Registry, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: agents heartbeat <id-or-name> [roots...]")
	}

	id, err := lookupAgentID(reg, args[0])
	if err != nil {
		return err
	}

	if err := reg.Heartbeat(id, args[1:]...); err != nil {
		return err
	}

	fmt.Printf("Heartbeat recorded for %s\n", args[0])
	return nil
}

// agentsList lists registered agents with derived liveness.
func agentsList(cfg *config.Config, reg registry.Registry, args []string) error {
	fs := flag.NewFlagSet("agents list", flag.ExitOnError)
	format := fs.String("format", "table", "output format (table, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := reg.List()
	if err != nil {
		return err
	}

	now := time.Now()
	rows := make([]display.AgentRow, len(records))
	for i, rec := range records {
		rows[i] = display.AgentRow{
			ID:         rec.ID,
			Name:       rec.Name,
			State:      rec.State,
			Liveness:   liveness.Derive(rec.LastSeenAt, now, cfg.Liveness.StaleMinutes),
			LastSeenAt: rec.LastSeenAt,
		}
	}

	formatter := display.New(display.Config{Format: display.Format(*format)})
	return formatter.FormatAgents(os.Stdout, rows)
}

// agentsState updates an agent's self-reported state.
func agentsState(reg registry.Registry, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: agents state <id-or-name> <working|stuck|dead|done>")
	}

	id, err := lookupAgentID(reg, args[0])
	if err != nil {
		return err
	}

	if err := reg.SetState(id, args[1]); err != nil {
		return err
	}

	fmt.Printf("Agent %s is now %s\n", args[0], args[1])
	return nil
}

// lookupAgentID accepts either an agent ID or a friendly name.
func lookupAgentID(reg registry.Registry, idOrName string) (string, error) {
	if _, err := reg.Get(idOrName); err == nil {
		return idOrName, nil
	}

	rec, err := reg.GetByName(idOrName)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return "", fmt.Errorf("agent %s is not registered", idOrName)
		}
		return "", err
	}

	return rec.ID, nil
}
