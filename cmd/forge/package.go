// package.go implements 'forge package', stamping the checkout once and writing one archive per selected module.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/forge/internal/archive"
	"github.com/example/forge/internal/gitinfo"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/manifest"
	"github.com/example/forge/internal/pubmeta"
	"github.com/example/forge/internal/signing"
	"github.com/example/forge/pkg/registry"
)

func newPackageCommand(logLevel *string) *cobra.Command {
	var (
		manifestPath   string
		outputDir      string
		force          bool
		signingKeyPath string
		registryFlag   string
	)

	cmd := &cobra.Command{
		Use:   "package [MODULE...]",
		Short: "Package project modules into versioned .forge archives",
		Long: `Stamps the checkout once, then packages each selected module (all modules
when none are named) into a SQLite archive carrying the version stamp and
the publication metadata declared in forge.yaml.`,
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
			keyPath := signingKeyPath
			if keyPath == "" {
				keyPath = cfg.SigningKey
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			// One stamp per invocation: every archive of this run carries
			// the identical version.
			stamp, err := gitinfo.Head(cmd.Context(), m.Dir())
			if err != nil {
				return err
			}
			logger.Info("stamped checkout", "version", stamp.String(), "dirty", stamp.Dirty)

			prefix := registryPrefix(m, cfg, registryFlag)
			now := time.Now().UTC()
			client := registry.NewClient(registry.WithCacheDir(cfg.CacheDir))

			results := make([]*archive.PackageResult, len(mods))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.NumCPU())
			for i, mod := range mods {
				g.Go(func() error {
					pub := pubmeta.FromModule(m, mod, stamp, now)
					doc, err := pub.Encode()
					if err != nil {
						return err
					}
					info := archive.ModuleInfo{
						Name:      mod.Name,
						Group:     mod.Group,
						Artifact:  mod.Artifact,
						Version:   stamp.String(),
						Commit:    stamp.Commit,
						Dirty:     stamp.Dirty,
						Toolchain: m.Toolchain,
					}
					res, err := archive.Package(ctx, m.ModuleDir(mod), info, archive.PackageOptions{
						OutputPath:  outputDir,
						Force:       force,
						Publication: doc,
					})
					if err != nil {
						return fmt.Errorf("package module %s: %w", mod.Name, err)
					}
					if err := recordForPublish(client, prefix, mod, stamp, res.ArchivePath); err != nil {
						return err
					}
					if keyPath != "" {
						if err := signArchive(res.ArchivePath, keyPath); err != nil {
							return fmt.Errorf("sign module %s: %w", mod.Name, err)
						}
					}
					results[i] = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			bold := color.New(color.Bold)
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "Packaged %s %s (%d files, %d bytes) -> %s\n",
					bold.Sprint(res.ModuleName), res.Version, res.FileCount, res.TotalBytes, res.ArchivePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to forge.yaml (default: discovered from the working directory)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "dist", "Directory archives are written to")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing archives")
	cmd.Flags().StringVar(&signingKeyPath, "sign", "", "Sign archives with the Ed25519 private key at this path")
	cmd.Flags().StringVar(&registryFlag, "registry", "", "Registry prefix used to record publish references")

	decorateCommandHelp(cmd, "Package Flags")
	return cmd
}

// recordForPublish stores the archive under its publish reference when a
// registry prefix is configured; packaging without one still succeeds.
func recordForPublish(client registry.Client, prefix string, mod manifest.Module, stamp gitinfo.Stamp, archivePath string) error {
	if prefix == "" {
		return nil
	}
	reference, err := registry.ArtifactReference(prefix, mod.Group, mod.Artifact, stamp.String())
	if err != nil {
		return fmt.Errorf("module %s: %w", mod.Name, err)
	}
	return client.RecordArchive(reference, archivePath, registry.RecordMeta{ModuleName: mod.Name, Version: stamp.String()})
}

func signArchive(archivePath, keyPath string) error {
	priv, pub, err := signing.LoadPrivateKey(keyPath)
	if err != nil {
		return err
	}
	env, err := signing.SignFile(archivePath, priv, pub)
	if err != nil {
		return err
	}
	return signing.WriteEnvelope(archivePath+".sig", env)
}
