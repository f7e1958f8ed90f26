package cmd

import (
	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persistent containers",
		Args:  cobra.NoArgs,
		RunE:  listContainers,
	}

	return cmd
}

func listContainers(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	return k.List()
}
