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

	"github.com/jeremyhahn/go-veil/pkg/health"
)

// ErrUnhealthy is returned when a health check fails.
var ErrUnhealthy = errors.New("health check failed")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storage, entropy, ledger and attempt limiter health",
	Long: `Run self-checks against the configured storage backend, the entropy
source, the ledger and the recovery attempt limiter. Exits non-zero if any check is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := getConfig().open(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = env.Close() }()

		checker := health.NewChecker()
		checker.RegisterCheck("storage", health.StorageCheck(env.backend))
		checker.RegisterCheck("entropy", health.EntropyCheck(env.random))
		checker.RegisterCheck("ledger", health.LedgerCheck(env.ledger))
		checker.RegisterCheck("attempts", health.AttemptLimiterCheck(env.attempts))

		results := checker.Run(cmd.Context())
		status := health.AggregateStatus(results)
		if err := newPrinter(cmd).PrintHealth(status, results); err != nil {
			return err
		}
		if status == health.StatusUnhealthy {
			return ErrUnhealthy
		}
		return nil
	},
}

// PrintHealth prints health check results
func (p *Printer) PrintHealth(status health.Status, results []health.CheckResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": status,
			"checks": results,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Status: %s\n", status)
		for _, r := range results {
			fmt.Fprintf(p.writer, "  %-8s %-9s %s\n", r.Name, r.Status, r.Message)
			if r.Error != "" {
				fmt.Fprintf(p.writer, "  %-8s %-9s %s\n", "", "error:", r.Error)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}
