package cmd

import (
	"github.com/spf13/cobra"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [CMD [ARGS...]]",
		Short: "Run a command in a fresh ephemeral container",
		Long: `Run a command in a fresh ephemeral container.

The container root is an overlay over the host filesystem whose
writable layer lives in a temporary directory removed on exit. With no
command a shell is started.`,
		Args: cobra.ArbitraryArgs,
		RunE: runSandbox,
	}
	addSandboxFlags(cmd)
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func runSandbox(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	inv, err := invocationFromFlags(cmd, args)
	if err != nil {
		return err
	}

	return k.Run(inv)
}
