package cmd

import (
	"github.com/spf13/cobra"
)

func NewExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <name> CMD [ARGS...]",
		Short: "Execute a command in a running container",
		Long: `Execute a command in a running container.

The command joins the namespaces of the live instance; network flags
are ignored because the joined network namespace already dictates
connectivity. Without a running instance this behaves like start.`,
		Args: cobra.MinimumNArgs(2),
		RunE: execContainer,
	}
	// The sandbox flags are accepted for symmetry with start but have
	// no effect on a joined instance.
	addSandboxFlags(cmd)
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func execContainer(cmd *cobra.Command, args []string) error {
	k, err := engine(cmd)
	if err != nil {
		return err
	}

	return k.Exec(args[0], args[1:], false)
}
