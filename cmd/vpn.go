package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewVpnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpn",
		Short: "Manage a container's stored WireGuard configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <config>",
		Short: "Attach a WireGuard config (name or path) to a container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := engine(cmd)
			if err != nil {
				return err
			}
			return k.VpnSet(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a container's stored WireGuard config reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := engine(cmd)
			if err != nil {
				return err
			}
			ref, err := k.VpnShow(args[0])
			if err != nil {
				return err
			}
			if ref == "" {
				fmt.Println("no vpn configured")
				return nil
			}
			fmt.Println(ref)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Detach the WireGuard config from a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := engine(cmd)
			if err != nil {
				return err
			}
			return k.VpnRemove(args[0])
		},
	})

	return cmd
}
