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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the commitment ledger and run time-locked recovery",
	Long: `The ledger stores one commitment per owner and never the key. A
recovery is initiated, then executed once its timelock expires with the
matching key, or cancelled by the owner.`,
}

// ledgerRecordCmd records an externally generated commitment
var ledgerRecordCmd = &cobra.Command{
	Use:   "record <owner> <commitment>",
	Short: "Record a commitment for an owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		commitment, err := recovery.ParseCommitment(args[1])
		if err != nil {
			return err
		}

		methodName, _ := cmd.Flags().GetString("method")
		days, _ := cmd.Flags().GetInt("days")
		threshold, _ := cmd.Flags().GetInt("threshold")
		total, _ := cmd.Flags().GetInt("shares")
		method, err := parseMethod(methodName, days, total, threshold)
		if err != nil {
			return err
		}

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.RecordCommitment(cmd.Context(), args[0], commitment, method)
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintEntry(entry)
	},
}

// ledgerShowCmd prints an owner's ledger entry
var ledgerShowCmd = &cobra.Command{
	Use:   "show <owner>",
	Short: "Show an owner's ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintEntry(entry)
	},
}

// ledgerListCmd lists owners on the ledger
var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List owners with a recorded commitment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		owners, err := env.ledger.List(cmd.Context())
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintOwnerList(owners)
	},
}

// ledgerInitiateCmd starts a recovery
var ledgerInitiateCmd = &cobra.Command{
	Use:   "initiate <owner>",
	Short: "Initiate a recovery and start its timelock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.InitiateRecovery(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintEntry(entry)
	},
}

// ledgerExecuteCmd completes a recovery
var ledgerExecuteCmd = &cobra.Command{
	Use:   "execute <owner> [share-file...]",
	Short: "Execute an unlocked recovery with the recovery key or guardian shares",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, shareFiles := args[0], args[1:]
		keyInput, _ := cmd.Flags().GetString("key")

		var key []byte
		switch {
		case keyInput != "":
			k, err := parseKeyInput(keyInput)
			if err != nil {
				return err
			}
			key = k
		case len(shareFiles) > 0:
			shares, err := readShares(shareFiles)
			if err != nil {
				return err
			}
			if key, err = secretsharing.Combine(shares); err != nil {
				return err
			}
		default:
			return fmt.Errorf("either --key or share files are required")
		}

		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.ExecuteRecovery(cmd.Context(), owner, key)
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintEntry(entry)
	},
}

// ledgerCancelCmd aborts a recovery
var ledgerCancelCmd = &cobra.Command{
	Use:   "cancel <owner>",
	Short: "Cancel an active recovery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		entry, err := env.ledger.CancelRecovery(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintEntry(entry)
	},
}

func init() {
	ledgerRecordCmd.Flags().StringP("method", "m", "timelock", "recovery method (timelock, shamir)")
	ledgerRecordCmd.Flags().Int("days", 7, "timelock period in days, 1-90")
	ledgerRecordCmd.Flags().IntP("threshold", "t", 3, "guardian shares required")
	ledgerRecordCmd.Flags().IntP("shares", "n", 5, "guardian shares issued")

	ledgerExecuteCmd.Flags().String("key", "", "recovery key (veil_rec_* or hex)")

	ledgerCmd.AddCommand(ledgerRecordCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerInitiateCmd)
	ledgerCmd.AddCommand(ledgerExecuteCmd)
	ledgerCmd.AddCommand(ledgerCancelCmd)
}
