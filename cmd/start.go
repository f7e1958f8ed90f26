package cmd

import (
	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <name> [CMD [ARGS...]]",
		Short: "Start a session on a persistent container",
		Long: `Start a session on a persistent container.

The container's stored overlay is mounted, so writes from earlier
sessions are visible and new writes persist. A --vpn given here
applies to this session only; use "kakuri vpn set" to change the
stored VPN.`,
		Args: cobra.MinimumNArgs(1),
		RunE: startContainer,
	}
	addSandboxFlags(cmd)
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func startContainer(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	inv, err := invocationFromFlags(cmd, args[1:])
	if err != nil {
		return err
	}

	return k.Start(args[0], inv, false)
}
