// publish.go implements 'forge publish', pushing previously packaged archives
// to the configured artifact registry.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/forge/internal/gitinfo"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/pubmeta"
	"github.com/example/forge/pkg/registry"
)

func newPublishCommand(logLevel *string) *cobra.Command {
	var (
		manifestPath  string
		registryFlag  string
		allowModified bool
		latest        bool
	)

	cmd := &cobra.Command{
		Use:   "publish [MODULE...]",
		Short: "Push packaged module archives to the artifact registry",
		Long: `Publishes the archives produced by 'forge package' as OCI artifacts. The
checkout is stamped again before pushing; a stamp that no longer matches the
packaged archives aborts the publish so stale artifacts never leave the host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(*logLevel)
			if err != nil {
				return err
			}
			m, err := loadProject(manifestPath)
			if err != nil {
				return err
			}
			cfg, err := loadToolConfig(m.Dir())
			if err != nil {
				return err
			}
			mods, err := selectModules(m, args)
			if err != nil {
				return err
			}

			stamp, err := gitinfo.Head(cmd.Context(), m.Dir())
			if err != nil {
				return err
			}
			if stamp.Dirty && !allowModified && !boolValue(cfg.AllowModified) {
				return fmt.Errorf("checkout has uncommitted changes (version %s); commit them or pass --allow-modified", stamp.String())
			}
			if latest && stamp.Dirty {
				return fmt.Errorf("refusing to tag a modified checkout as latest (version %s)", stamp.String())
			}

			prefix := registryPrefix(m, cfg, registryFlag)
			client := registry.NewClient(registry.WithCacheDir(cfg.CacheDir))
			now := time.Now().UTC()
			bold := color.New(color.Bold)

			for _, mod := range mods {
				reference, err := registry.ArtifactReference(prefix, mod.Group, mod.Artifact, stamp.String())
				if err != nil {
					return fmt.Errorf("module %s: %w", mod.Name, err)
				}
				rec, err := client.ResolveArchive(reference)
				if err != nil {
					return fmt.Errorf("module %s: %w", mod.Name, err)
				}
				if rec.Version != stamp.String() {
					return fmt.Errorf("module %s: archive was packaged at %s but the checkout is now %s; run forge package again", mod.Name, rec.Version, stamp.String())
				}

				pub := pubmeta.FromModule(m, mod, stamp, now)
				logger.Info("pushing artifact", "module", mod.Name, "reference", reference)
				res, err := client.Push(cmd.Context(), rec.ArchivePath, reference, registry.PushOptions{
					Annotations: pub.Annotations(),
					Output:      cmd.OutOrStdout(),
				})
				if err != nil {
					return fmt.Errorf("push module %s: %w", mod.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s -> %s (%s)\n", bold.Sprint(mod.Name), res.Reference, res.Digest)

				if latest {
					latestRef, err := registry.ArtifactReference(prefix, mod.Group, mod.Artifact, "latest")
					if err != nil {
						return fmt.Errorf("module %s: %w", mod.Name, err)
					}
					if err := client.Copy(cmd.Context(), res.Reference, latestRef); err != nil {
						return fmt.Errorf("retag module %s: %w", mod.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s -> %s\n", bold.Sprint(mod.Name), latestRef)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to forge.yaml (default: discovered from the working directory)")
	cmd.Flags().StringVar(&registryFlag, "registry", "", "Registry prefix artifacts are pushed under")
	cmd.Flags().BoolVar(&allowModified, "allow-modified", false, "Publish even when the working tree has uncommitted changes")
	cmd.Flags().BoolVar(&latest, "latest", false, "Also tag each pushed artifact as latest (clean checkouts only)")

	decorateCommandHelp(cmd, "Publish Flags")
	return cmd
}

func boolValue(p *bool) bool {
	return p != nil && *p
}
