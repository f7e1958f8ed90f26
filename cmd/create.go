package cmd

import (
	"github.com/spf13/cobra"
)

func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a persistent container",
		Long: `Create a persistent container.

Only the storage layout and the container record are created; nothing
is launched. The --allow-network, --user and --vpn flags given here
are stored as the container's defaults for every start; --bind,
--bind-profile and --workdir are not stored.`,
		Args: cobra.ExactArgs(1),
		RunE: createContainer,
	}
	addSandboxFlags(cmd)

	return cmd
}

func createContainer(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	inv, err := invocationFromFlags(cmd, nil)
	if err != nil {
		return err
	}

	return k.Create(args[0], inv)
}
