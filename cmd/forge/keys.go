// keys.go implements 'forge keys', managing the Ed25519 keypairs used to
// sign archives.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/signing"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "keys",
		Short:         "Manage archive signing keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newKeysGenerateCommand(), newKeysInspectCommand())
	decorateCommandHelp(cmd, "Keys Flags")
	return cmd
}

func newKeysGenerateCommand() *cobra.Command {
	var (
		outputDir string
		name      string
		force     bool
	)

	cmd := &cobra.Command{
		Use:           "generate",
		Short:         "Generate an Ed25519 signing keypair",
		Long:          "Writes <name>.key (private, mode 0600) and <name>.pub (public) into the output directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			privPath := filepath.Join(outputDir, name+".key")
			pubPath := filepath.Join(outputDir, name+".pub")
			if !force {
				for _, p := range []string{privPath, pubPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists; pass --force to overwrite", p)
					}
				}
			}

			priv, pub, err := signing.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := signing.SavePrivateKey(privPath, priv); err != nil {
				return err
			}
			if err := signing.SavePublicKey(pubPath, pub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated keypair %s\n  private: %s\n  public:  %s\n",
				signing.KeyID(pub), privPath, pubPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", defaultKeysDir(), "Directory the keypair is written into")
	cmd.Flags().StringVar(&name, "name", "forge", "Base name for the key files")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing key files")

	decorateCommandHelp(cmd, "Generate Flags")
	return cmd
}

func newKeysInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inspect KEYFILE",
		Short:         "Print the key ID of a public key file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := signing.LoadPublicKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", signing.KeyID(pub), args[0])
			return nil
		},
	}
	decorateCommandHelp(cmd, "Inspect Flags")
	return cmd
}

func defaultKeysDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "keys"
	}
	return filepath.Join(home, ".forge", "keys")
}
