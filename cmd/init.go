package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unfaded/kakuri/pkg/kakuri"
)

// NewInitCommand is the hidden verb kakuri re-executes itself with.
// It runs as PID 1 inside the freshly cloned namespaces: it blocks on
// the synchronization pipe until the parent releases it, assembles the
// container filesystem, provisions the network and execs the target
// command.
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "init",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE:   initSandbox,
	}

	return cmd
}

func initSandbox(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(log.DebugLevel)
	}

	spec, err := kakuri.ReadInitSpec()
	if err != nil {
		return fmt.Errorf("sandbox init: %w", err)
	}

	// On success this execs and never returns.
	if err := kakuri.InitSandbox(spec); err != nil {
		return fmt.Errorf("sandbox init: %w", err)
	}
	return nil
}
