package cmd

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unfaded/kakuri/pkg/kakuri"
	"github.com/unfaded/kakuri/pkg/types"
)

// addSandboxFlags registers the flags shared by the verbs that launch
// or describe a sandbox.
func addSandboxFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("allow-network", false, "Share the host network namespace")
	cmd.Flags().Bool("user", false, "Map to a non-root user inside the container")
	cmd.Flags().StringArray("bind", nil, "Bind mount HOST:CONTAINER[:ro] (repeatable)")
	cmd.Flags().StringArray("bind-profile", nil, "Expand a named bind profile from config (repeatable)")
	cmd.Flags().String("vpn", "", "Attach a WireGuard VPN by config name or path")
	cmd.Flags().String("workdir", "", "Initial working directory inside the container")
}

// engine builds the orchestrator honoring the persistent --config and
// --verbose flags.
func engine(cmd *cobra.Command) (*kakuri.Kakuri, error) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(log.DebugLevel)
	}
	configPath, _ := cmd.Flags().GetString("config")
	return kakuri.New(configPath)
}

// invocationFromFlags assembles an Invocation from the sandbox flags
// plus the trailing command vector.
func invocationFromFlags(cmd *cobra.Command, command []string) (kakuri.Invocation, error) {
	allowNetwork, _ := cmd.Flags().GetBool("allow-network")
	userMap, _ := cmd.Flags().GetBool("user")
	bindSpecs, _ := cmd.Flags().GetStringArray("bind")
	profiles, _ := cmd.Flags().GetStringArray("bind-profile")
	vpn, _ := cmd.Flags().GetString("vpn")
	workDir, _ := cmd.Flags().GetString("workdir")

	binds := make([]types.BindMount, 0, len(bindSpecs))
	for _, spec := range bindSpecs {
		b, err := types.ParseBindMount(spec)
		if err != nil {
			return kakuri.Invocation{}, kakuri.Usagef("%v", err)
		}
		binds = append(binds, b)
	}

	return kakuri.Invocation{
		Command:      command,
		AllowNetwork: allowNetwork,
		UserMap:      userMap,
		Binds:        binds,
		Profiles:     profiles,
		Vpn:          vpn,
		WorkDir:      workDir,
	}, nil
}

// ExitCode maps an error from any verb to the process exit status:
// usage errors are 2, a sandboxed command's status is forwarded
// verbatim, and everything else is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var usage *kakuri.UsageError
	if errors.As(err, &usage) {
		return 2
	}
	var child *kakuri.ChildExitError
	if errors.As(err, &child) {
		return child.Code
	}
	return 1
}

// Exit prints the error once and terminates with the mapped code.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	var child *kakuri.ChildExitError
	if !errors.As(err, &child) {
		fmt.Fprintln(os.Stderr, "kakuri:", err)
	}
	os.Exit(ExitCode(err))
}
