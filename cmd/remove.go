package cmd

import (
	"github.com/spf13/cobra"
)

func NewRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a persistent container and its storage",
		Args:  cobra.ExactArgs(1),
		RunE:  removeContainer,
	}

	return cmd
}

func removeContainer(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	return k.Remove(args[0])
}
