package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + appName,
		Args:  cobra.NoArgs,
		// skip config loading
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s version %s\n", appName, AppVersion)
			if AppBuildTime != "" {
				fmt.Fprintf(w, "built %s\n", AppBuildTime)
			}
			fmt.Fprintf(w, "cml library version %s\n", cml.Version)
			return nil
		},
	}
}
