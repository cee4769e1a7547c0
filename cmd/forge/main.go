// main.go bootstraps forge: it builds the root Cobra command and executes it with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/forge/internal/gitinfo"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	logLevel := "info"
	cmd := &cobra.Command{
		Use:           "forge",
		Short:         "Stamp, package, and publish multi-module build artifacts",
		Long:          "forge derives a version identifier from the Git checkout, packages project modules into portable archives, and publishes them to an artifact registry.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level for forge output (debug, info, warn, error)")

	stampCmd := newStampCommand()
	packageCmd := newPackageCommand(&logLevel)
	publishCmd := newPublishCommand(&logLevel)
	verifyCmd := newVerifyCommand()
	unpackCmd := newUnpackCommand()
	depsCmd := newDepsCommand()
	keysCmd := newKeysCommand()
	versionCmd := newVersionCommand()
	cmd.AddCommand(stampCmd, packageCmd, publishCmd, verifyCmd, unpackCmd, depsCmd, keysCmd, versionCmd)
	cmd.Example = `  # Print the version identifier for the current checkout
  forge stamp

  # Package every module into dist/ and sign the archives
  forge package --output dist --sign ~/.forge/keys/forge.key

  # Publish the core module to the configured registry
  forge publish core`
	decorateCommandHelp(cmd, "Global Flags")
	bindViper(cmd, stampCmd, packageCmd, publishCmd, verifyCmd, unpackCmd, depsCmd, versionCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()
	configFile := os.Getenv("FORGE_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()}
			for _, fs := range flagSets {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".forge"))
}

func readConfigFile(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !explicit && errors.As(err, &notFound) {
		return nil
	}
	if !explicit && os.IsNotExist(err) {
		return nil
	}
	return err
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, gitinfo.ErrNotARepository):
		message = fmt.Sprintf("%s\nHint: forge must run inside a Git checkout; initialize one or pass the repository path explicitly.", err)
	case errors.Is(err, gitinfo.ErrHeadUnresolved):
		message = fmt.Sprintf("%s\nHint: the repository has no commits yet, so no version can be stamped. Create an initial commit first.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
