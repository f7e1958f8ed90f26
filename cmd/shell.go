package cmd

import (
	"github.com/spf13/cobra"
)

func NewShellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <name>",
		Short: "Open an interactive shell in a container",
		Args:  cobra.ExactArgs(1),
		RunE:  shellContainer,
	}

	return cmd
}

func shellContainer(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	return k.Shell(args[0])
}
