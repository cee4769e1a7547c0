// unpack.go implements 'forge unpack', extracting a .forge archive back into
// a module directory.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/archive"
)

func newUnpackCommand() *cobra.Command {
	var (
		destination string
		force       bool
	)

	cmd := &cobra.Command{
		Use:           "unpack ARCHIVE",
		Short:         "Extract a .forge archive into a directory",
		Long:          "Extracts the files stored in an archive, re-verifying each file hash on the way out. The destination defaults to <artifact>-<version> next to the working directory.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := archive.Unpack(cmd.Context(), args[0], archive.UnpackOptions{
				DestinationPath: destination,
				Force:           force,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unpacked %s %s (%d files, %d bytes) -> %s\n",
				res.ModuleName, res.Version, res.FileCount, res.TotalBytes, res.DestinationPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Directory files are extracted into")
	cmd.Flags().BoolVar(&force, "force", false, "Extract into a non-empty destination")

	decorateCommandHelp(cmd, "Unpack Flags")
	return cmd
}
