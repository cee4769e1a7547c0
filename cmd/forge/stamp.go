// stamp.go implements 'forge stamp', printing the version identifier derived from the Git checkout.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/appconfig"
	"github.com/example/forge/internal/gitinfo"
)

func newStampCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stamp [PATH]",
		Short: "Print the version identifier for a Git checkout",
		Long: `Reads the repository's HEAD commit and working-tree state and prints the
version identifier builds are stamped with: the commit hash, with a
'.modified' suffix when the tree has uncommitted changes.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			} else {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = wd
				if found := appconfig.FindRepoRoot(wd); found != "" {
					root = found
				}
			}
			st, err := gitinfo.Head(cmd.Context(), root)
			if err != nil {
				return err
			}
			if asJSON {
				payload := struct {
					Commit  string `json:"commit"`
					Dirty   bool   `json:"dirty"`
					Version string `json:"version"`
				}{Commit: st.Commit, Dirty: st.Dirty, Version: st.String()}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the stamp as JSON with commit and dirty fields")

	decorateCommandHelp(cmd, "Stamp Flags")
	return cmd
}
