// version.go implements 'forge version', printing build info for the tool
// itself and, when run inside a checkout, the stamp of that checkout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/appconfig"
	"github.com/example/forge/internal/buildinfo"
	"github.com/example/forge/internal/gitinfo"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Print forge build information",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:       %s\n", info.Version)
			fmt.Fprintf(out, "Git commit:    %s\n", info.GitCommit)
			fmt.Fprintf(out, "Git state:     %s\n", info.GitTreeState)
			fmt.Fprintf(out, "Build date:    %s\n", info.BuildDate)
			fmt.Fprintf(out, "Go version:    %s\n", info.GoVersion)
			fmt.Fprintf(out, "Platform:      %s\n", info.Platform)

			// Best effort: the tool version never depends on where it runs,
			// but the current checkout's stamp is handy alongside it.
			if cwd, err := os.Getwd(); err == nil {
				if root := appconfig.FindRepoRoot(cwd); root != "" {
					if st, err := gitinfo.Head(cmd.Context(), root); err == nil {
						fmt.Fprintf(out, "Checkout:      %s\n", st.String())
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	decorateCommandHelp(cmd, "Version Flags")
	return cmd
}
