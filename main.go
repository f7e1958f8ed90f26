package main

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unfaded/kakuri/cmd"
	"github.com/unfaded/kakuri/pkg/kakuri"
)

var version = "0.1.0"

// knownVerbs are the subcommands the CLI understands; anything else in
// command position is treated as a program to run in an ephemeral
// container.
var knownVerbs = map[string]bool{
	"run": true, "create": true, "start": true, "exec": true,
	"shell": true, "list": true, "remove": true, "vpn": true,
	"init": true, "help": true, "completion": true,
}

// valueFlags are the flags that consume the following argument, so the
// direct-execution scan does not mistake their values for the command.
var valueFlags = map[string]bool{
	"--bind": true, "--bind-profile": true, "--vpn": true,
	"--config": true, "--workdir": true,
}

// directExecution reports whether the invocation is the shorthand form
// "kakuri [flags] CMD ARGS...", i.e. the first non-flag argument is
// not a known verb.
func directExecution(args []string) bool {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return i+1 < len(args)
		}
		if strings.HasPrefix(arg, "-") {
			if valueFlags[arg] {
				i++
			}
			continue
		}
		return !knownVerbs[arg]
	}
	return false
}

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	// Shorthand: route "kakuri CMD ARGS..." through the run verb.
	if directExecution(os.Args) {
		os.Args = append([]string{os.Args[0], "run"}, os.Args[1:]...)
	}

	rootCmd := &cobra.Command{
		Use:           "kakuri",
		Short:         "Unprivileged container runtime",
		Long:          `kakuri launches commands inside unprivileged namespace sandboxes with an overlay root, and manages persistent containers that can be re-entered across invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().String("config", "", "Path to the config file")
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return kakuri.Usagef("%v", err)
	})

	rootCmd.AddCommand(cmd.NewRunCommand())
	rootCmd.AddCommand(cmd.NewCreateCommand())
	rootCmd.AddCommand(cmd.NewStartCommand())
	rootCmd.AddCommand(cmd.NewExecCommand())
	rootCmd.AddCommand(cmd.NewShellCommand())
	rootCmd.AddCommand(cmd.NewListCommand())
	rootCmd.AddCommand(cmd.NewRemoveCommand())
	rootCmd.AddCommand(cmd.NewVpnCommand())
	rootCmd.AddCommand(cmd.NewInitCommand())

	rootCmd.Version = version
	cmd.Exit(rootCmd.Execute())
}
