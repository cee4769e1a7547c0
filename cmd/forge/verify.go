// verify.go implements 'forge verify', checking archive integrity and
// detached signatures.
package main

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/forge/internal/archive"
	"github.com/example/forge/internal/signing"
)

func newVerifyCommand() *cobra.Command {
	var (
		publicKeyPath string
		signaturePath string
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:   "verify ARCHIVE [ARCHIVE...]",
		Short: "Verify the integrity and signatures of .forge archives",
		Long: `Recomputes every stored file hash inside each archive and reports the
deterministic content digest. When a detached signature envelope exists next
to the archive (or is named with --signature) it is verified as well.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if signaturePath != "" && len(args) > 1 {
				return errors.New("--signature applies to a single archive")
			}
			var pub ed25519.PublicKey
			if publicKeyPath != "" {
				key, err := signing.LoadPublicKey(publicKeyPath)
				if err != nil {
					return err
				}
				pub = key
			}

			green := color.New(color.FgGreen)
			for _, path := range args {
				res, err := archive.Verify(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("verify %s: %w", path, err)
				}

				signed, err := verifySignature(path, signaturePath, pub)
				if err != nil {
					return fmt.Errorf("verify %s: %w", path, err)
				}

				if jsonOut {
					out := struct {
						*archive.VerifyResult
						Signed bool `json:"signed"`
					}{res, signed}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(out); err != nil {
						return err
					}
					continue
				}
				status := "unsigned"
				if signed {
					status = green.Sprint("signed")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d files, %s, %s\n",
					green.Sprint("OK"), path, res.FileCount, res.ContentDigest, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&publicKeyPath, "key", "", "Public key used to verify signatures (default: key embedded in the envelope)")
	cmd.Flags().StringVar(&signaturePath, "signature", "", "Path to the signature envelope (default: ARCHIVE.sig)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit verification results as JSON")

	decorateCommandHelp(cmd, "Verify Flags")
	return cmd
}

// verifySignature checks the envelope for path when one exists. A missing
// default envelope is not an error; a missing explicit one is.
func verifySignature(path, signaturePath string, pub ed25519.PublicKey) (bool, error) {
	explicit := signaturePath != ""
	if signaturePath == "" {
		signaturePath = path + ".sig"
	}
	env, err := signing.ReadEnvelope(signaturePath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := signing.VerifyFile(path, env, pub); err != nil {
		return false, err
	}
	return true, nil
}
