// AngelaMos | 2026
// keygen.go

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/authflow/internal/auth"
)

const (
	defaultPrivateKeyPath = "keys/private.pem"
	defaultPublicKeyPath  = "keys/public.pem"
)

// keygen does not load the full config: it has to work before DATABASE_URL
// and friends exist.
func newKeygenCmd() *cobra.Command {
	var (
		privatePath string
		publicPath  string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ES256 session signing key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(privatePath); err == nil {
					return fmt.Errorf(
						"%s already exists, pass --force to overwrite",
						privatePath,
					)
				}
			}

			for _, p := range []string{privatePath, publicPath} {
				if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
					return fmt.Errorf("create key dir: %w", err)
				}
			}

			if err := auth.GenerateKeyPair(privatePath, publicPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privatePath, publicPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&privatePath, "private", envOr("JWT_PRIVATE_KEY_PATH", defaultPrivateKeyPath), "private key output path")
	cmd.Flags().StringVar(&publicPath, "public", envOr("JWT_PUBLIC_KEY_PATH", defaultPublicKeyPath), "public key output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing keys")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
