// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-veil.
//
// go-veil is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// keygenCmd generates a standalone recovery key
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random 32-byte recovery key",
	Long: `Generate a random 32-byte recovery key and print it with its SHA-256
commitment. Use --method to print the key in display form.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		key, err := env.manager.GenerateRecoveryKey()
		if err != nil {
			return err
		}
		commitment := recovery.CreateRecoveryCommitment(key)

		method, _ := cmd.Flags().GetString("method")
		if method == "" {
			return newPrinter(cmd).PrintKey(key, commitment)
		}

		kind, err := recovery.ParseMethodKind(method)
		if err != nil {
			return err
		}
		display, err := recovery.EncodeKey(kind, key)
		if err != nil {
			return err
		}
		printVerbose(cmd, "Generated %s key", kind)
		return newPrinter(cmd).PrintSuccess(display)
	},
}

// commitCmd computes the commitment of a key
var commitCmd = &cobra.Command{
	Use:   "commit <key>",
	Short: "Compute the commitment of a recovery key",
	Long:  `Compute the SHA-256 commitment of a recovery key given as a veil_rec_* string or hex`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKeyInput(args[0])
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintCommitment(recovery.CreateRecoveryCommitment(key))
	},
}

// verifyCmd checks a key against a commitment
var verifyCmd = &cobra.Command{
	Use:   "verify <key> <commitment>",
	Short: "Verify a recovery key against a commitment",
	Long: `Verify a recovery key against a commitment. The comparison runs in
constant time. Exits non-zero on a mismatch.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKeyInput(args[0])
		if err != nil {
			return err
		}
		commitment, err := recovery.ParseCommitment(strings.TrimSpace(args[1]))
		if err != nil {
			return err
		}

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		ok := env.manager.VerifyRecoveryKey(key, commitment)
		if err := newPrinter(cmd).PrintVerification(ok, commitment); err != nil {
			return err
		}
		if !ok {
			return ErrVerificationFailed
		}
		return nil
	},
}

// readSecret returns the secret given by --secret (hex), --text or --file
func readSecret(cmd *cobra.Command) ([]byte, error) {
	secretHex, _ := cmd.Flags().GetString("secret")
	text, _ := cmd.Flags().GetString("text")
	path, _ := cmd.Flags().GetString("file")

	switch {
	case secretHex != "":
		secret, err := hex.DecodeString(strings.TrimSpace(secretHex))
		if err != nil {
			return nil, fmt.Errorf("invalid hex secret: %w", err)
		}
		return secret, nil
	case text != "":
		return []byte(text), nil
	case path != "":
		// #nosec G304 - secret file path is provided by the user
		return os.ReadFile(path)
	default:
		return nil, fmt.Errorf("one of --secret, --text or --file is required")
	}
}

func init() {
	keygenCmd.Flags().String("method", "", "print the key in display form for this method (timelock, shamir)")
}
