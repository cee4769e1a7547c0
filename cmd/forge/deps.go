// deps.go implements 'forge deps', listing the dependency coordinates each
// module declares in forge.yaml.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/forge/internal/manifest"
)

func newDepsCommand() *cobra.Command {
	var (
		manifestPath string
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "deps [MODULE...]",
		Short: "List the dependency coordinates declared by project modules",
		Long: `Prints each selected module's declared dependencies as group:artifact or
group:artifact:version coordinates. Coordinates that point at sibling modules
of the same project are marked. forge does not resolve dependencies; the
declarations are carried into publication metadata as-is.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadProject(manifestPath)
			if err != nil {
				return err
			}
			mods, err := selectModules(m, args)
			if err != nil {
				return err
			}

			siblings := make(map[string]bool, len(m.Modules))
			for _, mod := range m.Modules {
				siblings[mod.Group+":"+mod.Artifact] = true
			}

			if jsonOut {
				out := make(map[string][]string, len(mods))
				for _, mod := range mods {
					out[mod.Name] = append([]string(nil), mod.Dependencies...)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			bold := color.New(color.Bold)
			faint := color.New(color.Faint)
			for _, mod := range mods {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", bold.Sprint(mod.Name))
				if len(mod.Dependencies) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint.Sprint("(no declared dependencies)"))
					continue
				}
				for _, dep := range mod.Dependencies {
					coord, err := manifest.ParseCoordinate(dep)
					if err != nil {
						return fmt.Errorf("module %s: %w", mod.Name, err)
					}
					marker := ""
					if siblings[coord.Group+":"+coord.Artifact] {
						marker = faint.Sprint("  (module of this project)")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  %s%s\n", dep, marker)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to forge.yaml (default: discovered from the working directory)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit dependencies as JSON")

	decorateCommandHelp(cmd, "Deps Flags")
	return cmd
}
