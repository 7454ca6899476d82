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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/ledger"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
	"github.com/jeremyhahn/go-veil/pkg/storage"
)

// recoveryCmd represents the recovery command
var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Manage owner recovery configurations",
	Long:  `Set up, inspect, verify and delete recovery configurations for wallet owners`,
}

// recoverySetupCmd creates a recovery configuration for an owner
var recoverySetupCmd = &cobra.Command{
	Use:   "setup <owner>",
	Short: "Create a recovery key and record its commitment",
	Long: `Create a recovery key for an owner and record its commitment on the
ledger, superseding any previous configuration.

  timelock: the key is stored locally and printed once
  shamir:   the key is split and written one file per guardian to
            --share-dir; only the commitment and share parameters
            are kept locally or printed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := args[0]
		if err := storage.ValidateID(owner); err != nil {
			return err
		}

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		methodName, _ := cmd.Flags().GetString("method")
		days, _ := cmd.Flags().GetInt("days")
		threshold, _ := cmd.Flags().GetInt("threshold")
		total, _ := cmd.Flags().GetInt("shares")
		shareDir, _ := cmd.Flags().GetString("share-dir")

		if !cmd.Flags().Changed("days") {
			days = env.settings.Recovery.TimelockDays
		}
		if !cmd.Flags().Changed("threshold") {
			threshold = env.settings.Recovery.Threshold
		}
		if !cmd.Flags().Changed("shares") {
			total = env.settings.Recovery.TotalShares
		}

		method, err := parseMethod(methodName, days, total, threshold)
		if err != nil {
			return err
		}
		if _, ok := method.(recovery.Shamir); ok && shareDir == "" {
			return ErrShareDirRequired
		}

		var rk *recovery.RecoveryKey
		switch m := method.(type) {
		case recovery.TimeLock:
			rk, err = env.manager.GenerateTimeLockRecovery(m.Days)
			if err != nil {
				return err
			}
			if err := env.store.PutRecoveryKey(owner, rk); err != nil {
				return err
			}
		case recovery.Shamir:
			var shares []secretsharing.Share
			rk, shares, err = env.manager.GenerateShamirRecovery(m.TotalShares, m.Threshold)
			if err != nil {
				return err
			}
			set, err := recovery.DescribeShares(shares, rk.CreatedAt)
			if err != nil {
				return err
			}
			paths, err := writeShareFiles(shareDir, owner, shares)
			if err != nil {
				return err
			}
			printVerbose(cmd, "Wrote %d share files to %s", len(paths), shareDir)
			if err := env.store.PutShareSet(owner, set); err != nil {
				return err
			}
		}
		defer rk.Wipe()

		if _, err := env.ledger.RecordCommitment(cmd.Context(), owner, rk.Commitment, rk.Method); err != nil {
			return err
		}
		// A Shamir key exists only as its shares once setup returns.
		_, reveal := rk.Method.(recovery.TimeLock)
		return newPrinter(cmd).PrintRecoveryKey(rk, reveal)
	},
}

// recoveryShowCmd prints an owner's stored recovery key
var recoveryShowCmd = &cobra.Command{
	Use:   "show <owner>",
	Short: "Show an owner's stored recovery key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		rk, err := env.store.GetRecoveryKey(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no recovery key stored for %s", args[0])
		}
		if err != nil {
			return err
		}
		defer rk.Wipe()

		reveal, _ := cmd.Flags().GetBool("reveal")
		return newPrinter(cmd).PrintRecoveryKey(rk, reveal)
	},
}

// recoveryVerifyCmd verifies a key or guardian shares against the ledger
var recoveryVerifyCmd = &cobra.Command{
	Use:   "verify <owner> [share-file...]",
	Short: "Verify a recovery key or guardian shares against the ledger",
	Long: `Verify a recovery key (--key) or guardian share files against the
commitment recorded on the ledger for an owner. Exits non-zero on a mismatch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, shareFiles := args[0], args[1:]
		keyInput, _ := cmd.Flags().GetString("key")
		if keyInput == "" && len(shareFiles) == 0 {
			return fmt.Errorf("either --key or share files are required")
		}

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.Get(cmd.Context(), owner)
		if err != nil {
			return err
		}

		var shares []secretsharing.Share
		if len(shareFiles) > 0 {
			if shares, err = readShares(shareFiles); err != nil {
				return err
			}
		}

		set, err := env.store.GetShareSet(owner)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		method, err := entryMethod(entry, set, shares)
		if err != nil {
			return err
		}

		session := recovery.NewSession(env.manager)
		if err := session.ConfigureCommitment(entry.Commitment, method); err != nil {
			return err
		}

		var ok bool
		if keyInput != "" {
			key, err := parseKeyInput(keyInput)
			if err != nil {
				return err
			}
			ok, err = session.Verify(key)
			if err != nil {
				return err
			}
		} else {
			if _, ok, err = session.VerifyShares(shares); err != nil {
				return err
			}
		}
		printVerbose(cmd, "Session state: %s", session.State())

		if err := newPrinter(cmd).PrintVerification(ok, entry.Commitment); err != nil {
			return err
		}
		if !ok {
			return ErrVerificationFailed
		}
		return nil
	},
}

// recoveryDeleteCmd removes an owner's local recovery material
var recoveryDeleteCmd = &cobra.Command{
	Use:   "delete <owner>",
	Short: "Delete an owner's stored recovery key and shares",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		if err := env.store.DeleteRecovery(args[0]); err != nil {
			return err
		}
		return newPrinter(cmd).PrintSuccess(fmt.Sprintf("Deleted recovery material for %s", args[0]))
	},
}

// recoveryListCmd lists owners with a stored recovery key
var recoveryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List owners with a stored recovery key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		owners, err := env.store.Owners()
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintOwnerList(owners)
	},
}

// entryMethod rebuilds the recovery method of a ledger entry. Shamir
// parameters are not on the ledger; they come from the local share set
// description when there is one and from the presented shares otherwise.
func entryMethod(entry *ledger.Entry, set *recovery.ShareSet, shares []secretsharing.Share) (recovery.Method, error) {
	switch entry.Method {
	case recovery.MethodTimeLock:
		return recovery.TimeLock{Days: entry.TimelockDays}, nil
	case recovery.MethodShamir:
		if len(shares) == 0 {
			return nil, fmt.Errorf("%w: shamir recoveries are verified with guardian shares", recovery.ErrMethodMismatch)
		}
		// Forged parameters here can only produce a key that fails the
		// commitment check.
		presented := recovery.Shamir{TotalShares: shares[0].TotalShares, Threshold: shares[0].Threshold}
		if set != nil && set.Method() != presented {
			return nil, fmt.Errorf("%w: shares were issued as %s, presented as %s", recovery.ErrMethodMismatch, set.Method(), presented)
		}
		return presented, nil
	default:
		return nil, fmt.Errorf("%w: %q", recovery.ErrUnknownMethod, entry.Method)
	}
}

func init() {
	recoverySetupCmd.Flags().StringP("method", "m", "shamir", "recovery method (timelock, shamir)")
	recoverySetupCmd.Flags().Int("days", 7, "timelock period in days, 1-90 (default from config)")
	recoverySetupCmd.Flags().IntP("threshold", "t", 3, "guardian shares required (default from config)")
	recoverySetupCmd.Flags().IntP("shares", "n", 5, "guardian shares to create (default from config)")
	recoverySetupCmd.Flags().String("share-dir", "", "directory receiving one share file per guardian (required for shamir)")

	recoveryShowCmd.Flags().Bool("reveal", false, "include the recovery key in display form")

	recoveryVerifyCmd.Flags().String("key", "", "recovery key (veil_rec_* or hex)")

	recoveryCmd.AddCommand(recoverySetupCmd)
	recoveryCmd.AddCommand(recoveryShowCmd)
	recoveryCmd.AddCommand(recoveryVerifyCmd)
	recoveryCmd.AddCommand(recoveryDeleteCmd)
	recoveryCmd.AddCommand(recoveryListCmd)
}
