// Package main provides the bead-sync CLI application.
//
// bead-sync is the coordination sidecar for beads-tracked workspaces.
// It watches issue snapshots for changes, turns them into activity
// events, and manages scope reservations and agent liveness for
// multi-agent work on one tracker.
package main

import (
	"flag"
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	// Parse command.
	flag.Parse()

	// Handle version flag.
	if *showVersion {
		fmt.Printf("bead-sync %s\n", version)
		return nil
	}

	// Get command.
	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "watch":
		return runWatchCommand(*configPath, args[1:])
	case "history":
		return runHistoryCommand(*configPath, args[1:])
	case "reserve":
		return runReserveCommand(*configPath, args[1:])
	case "release":
		return runReleaseCommand(*configPath, args[1:])
	case "status":
		return runStatusCommand(*configPath, args[1:])
	case "agents":
		return runAgentsCommand(*configPath, args[1:])
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// showUsage displays usage information.
func showUsage() error {
	usage := `bead-sync - coordination sidecar for beads-tracked workspaces

Usage:
  bead-sync [flags] <command> [command flags]

Commands:
  watch       Watch workspace roots and stream change/activity frames
  history     Show recent activity history
  reserve     Reserve exclusive ownership of a file scope
  release     Release a scope reservation
  status      Show active reservations and pending acknowledgements
  agents      Agent registry (register, heartbeat, list, state)
  config      Configuration management (show, init, validate, path)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Watch Command Flags:
  -project    Only stream frames for one workspace root
  (positional arguments are the roots to watch; defaults to config)

History Command Flags:
  -project    Filter history to one workspace root
  -format     Output format (table, json)

Reserve Command Flags:
  -agent      Agent ID or name (required)
  -scope      File scope to claim, e.g. src/lib or src/lib/** (required)
  -issue      Issue the claim is for
  -ttl        Lease length in minutes (default: 30)
  -takeover   Claim a scope whose previous reservation expired

Release Command Flags:
  -agent      Agent ID or name (required)
  -scope      Scope to release (required)

Status Command Flags:
  -agent      Filter by agent
  -issue      Filter by issue
  -format     Output format (table, json)

Examples:
  # Watch the current directory and stream frames to stdout
  bead-sync watch .

  # Watch two workspaces
  bead-sync watch /work/project-a /work/project-b

  # Reserve a scope for half a day
  bead-sync reserve -agent amp-worker-1 -scope src/lib -issue bd-7 -ttl 720

  # Take over a stale claim
  bead-sync reserve -agent amp-worker-2 -scope src/lib -takeover

  # Release it
  bead-sync release -agent amp-worker-1 -scope src/lib

  # Show who holds what
  bead-sync status

  # Agent registry
  bead-sync agents register amp-worker-1
  bead-sync agents heartbeat amp-worker-1 /work/project-a
  bead-sync agents list
  bead-sync agents state amp-worker-1 stuck

  # Recent activity for one workspace
  bead-sync history -project /work/project-a

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
