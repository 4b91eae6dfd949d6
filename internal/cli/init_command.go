package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/ingest/internal/config"
)

const (
	initUse                   = "init"
	initShortDescription      = "write a default configuration file"
	initGlobalFlagName        = "global"
	initForceFlagName         = "force"
	initGlobalFlagDescription = "write to the per-user configuration directory"
	initForceFlagDescription  = "overwrite an existing configuration file"
	initCreatedTemplate       = "configuration written to %s\n"
)

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(command.OutOrStdout(), initCreatedTemplate, path)
			return writeError
		},
	}
	registerSwitchFlag(initCommand.Flags(), &global, initGlobalFlagName, false, initGlobalFlagDescription)
	registerSwitchFlag(initCommand.Flags(), &force, initForceFlagName, false, initForceFlagDescription)
	return initCommand
}
