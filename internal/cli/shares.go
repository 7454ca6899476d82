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
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// splitCmd splits an arbitrary secret into shares
var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a secret into Shamir shares",
	Long: `Split a secret into N shares so that any T of them reconstruct it.
The secret is given as hex (--secret), text (--text) or a file (--file).
With --out-dir each share is written to its own file for distribution.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}
		threshold, _ := cmd.Flags().GetInt("threshold")
		total, _ := cmd.Flags().GetInt("shares")
		outDir, _ := cmd.Flags().GetString("out-dir")

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		if !cmd.Flags().Changed("threshold") {
			threshold = env.settings.Recovery.Threshold
		}
		if !cmd.Flags().Changed("shares") {
			total = env.settings.Recovery.TotalShares
		}

		shamir, err := secretsharing.NewShamir(&secretsharing.ShareConfig{
			Threshold:   threshold,
			TotalShares: total,
		}, secretsharing.WithRandom(env.random))
		if err != nil {
			return err
		}

		start := time.Now()
		shares, err := shamir.Split(secret)
		metrics.RecordOperation(metrics.OpSplit, metrics.MethodNone, metrics.Status(err), time.Since(start).Seconds())
		if err != nil {
			return err
		}
		metrics.AddSharesIssued(len(shares))
		printVerbose(cmd, "Split %d-byte secret into %d-of-%d shares", len(secret), threshold, total)

		if outDir != "" {
			paths, err := writeShareFiles(outDir, "secret", shares)
			if err != nil {
				return err
			}
			return newPrinter(cmd).PrintOwnerList(paths)
		}
		return newPrinter(cmd).PrintShares(shares)
	},
}

// combineCmd reconstructs a secret from share files
var combineCmd = &cobra.Command{
	Use:   "combine <share-file>...",
	Short: "Reconstruct a secret from Shamir shares",
	Long: `Reconstruct a secret from share files. Reconstruction performs no
integrity check: pass --commitment to verify the result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shares, err := readShares(args)
		if err != nil {
			return err
		}

		start := time.Now()
		secret, err := secretsharing.Combine(shares)
		metrics.RecordOperation(metrics.OpCombine, metrics.MethodNone, metrics.Status(err), time.Since(start).Seconds())
		if err != nil {
			return err
		}

		commitmentHex, _ := cmd.Flags().GetString("commitment")
		if commitmentHex == "" {
			return newPrinter(cmd).PrintSecret(secret)
		}

		commitment, err := recovery.ParseCommitment(commitmentHex)
		if err != nil {
			return err
		}
		ok := recovery.VerifyRecoveryKey(secret, commitment)
		metrics.RecordVerification(ok)
		if err := newPrinter(cmd).PrintVerification(ok, commitment); err != nil {
			return err
		}
		if !ok {
			return ErrVerificationFailed
		}
		return newPrinter(cmd).PrintSecret(secret)
	},
}

func init() {
	splitCmd.Flags().String("secret", "", "secret as hex")
	splitCmd.Flags().String("text", "", "secret as text")
	splitCmd.Flags().String("file", "", "read the secret from a file")
	splitCmd.Flags().IntP("threshold", "t", 3, "shares required to reconstruct (default from config)")
	splitCmd.Flags().IntP("shares", "n", 5, "total shares to create (default from config)")
	splitCmd.Flags().String("out-dir", "", "write each share to its own file in this directory")

	combineCmd.Flags().String("commitment", "", "verify the result against this commitment")
}
