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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/ledger"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintKey prints a freshly generated raw key and its commitment
func (p *Printer) PrintKey(key []byte, commitment recovery.Commitment) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"key":        hex.EncodeToString(key),
			"commitment": commitment.String(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key:        %s\n", hex.EncodeToString(key))
		fmt.Fprintf(p.writer, "Commitment: %s\n", commitment)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCommitment prints a commitment
func (p *Printer) PrintCommitment(commitment recovery.Commitment) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"commitment": commitment.String(),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, commitment)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVerification prints the result of a commitment check
func (p *Printer) PrintVerification(match bool, commitment recovery.Commitment) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"match":      match,
			"commitment": commitment.String(),
		})
	case OutputFormatText:
		if match {
			fmt.Fprintln(p.writer, "Verified: key matches commitment")
		} else {
			fmt.Fprintln(p.writer, "Rejected: key does not match commitment")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintRecoveryKey prints recovery key details. The key itself is only
// included when reveal is true.
func (p *Printer) PrintRecoveryKey(rk *recovery.RecoveryKey, reveal bool) error {
	display := ""
	if reveal {
		s, err := recovery.FormatRecoveryKey(rk)
		if err != nil {
			return err
		}
		display = s
	}

	switch p.format {
	case OutputFormatJSON:
		info := map[string]interface{}{
			"method":     rk.Method.MethodName(),
			"commitment": rk.Commitment.String(),
			"created_at": rk.CreatedAt.Format(time.RFC3339),
		}
		switch m := rk.Method.(type) {
		case recovery.TimeLock:
			info["timelock_days"] = m.Days
		case recovery.Shamir:
			info["total_shares"] = m.TotalShares
			info["threshold"] = m.Threshold
		}
		if reveal {
			info["recovery_key"] = display
		}
		return p.printJSON(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Recovery Key:\n")
		fmt.Fprintf(p.writer, "  Method:     %s\n", rk.Method)
		fmt.Fprintf(p.writer, "  Commitment: %s\n", rk.Commitment)
		fmt.Fprintf(p.writer, "  Created:    %s\n", rk.CreatedAt.Format(time.RFC3339))
		if reveal {
			fmt.Fprintf(p.writer, "  Key:        %s\n", display)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintShares prints guardian shares. JSON output is the serialized share
// array accepted by combine.
func (p *Printer) PrintShares(shares []secretsharing.Share) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(shares)
	case OutputFormatText:
		if len(shares) == 0 {
			fmt.Fprintln(p.writer, "No shares")
			return nil
		}
		fmt.Fprintf(p.writer, "Shares (%d-of-%d):\n", shares[0].Threshold, shares[0].TotalShares)
		for _, s := range shares {
			fmt.Fprintf(p.writer, "  %3d: %s\n", s.Index, hex.EncodeToString(s.Payload))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecret prints a reconstructed secret as hex
func (p *Printer) PrintSecret(secret []byte) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"secret": hex.EncodeToString(secret),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, hex.EncodeToString(secret))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintEntry prints a ledger entry
func (p *Printer) PrintEntry(entry *ledger.Entry) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(entry)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Ledger Entry:\n")
		fmt.Fprintf(p.writer, "  Owner:       %s\n", entry.Owner)
		fmt.Fprintf(p.writer, "  Method:      %s\n", entry.Method)
		fmt.Fprintf(p.writer, "  Commitment:  %s\n", entry.Commitment)
		fmt.Fprintf(p.writer, "  Timelock:    %d days\n", entry.TimelockDays)
		fmt.Fprintf(p.writer, "  Recorded:    %s\n", entry.RecordedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "  Active:      %t\n", entry.RecoveryActive)
		if entry.RequestID != "" {
			fmt.Fprintf(p.writer, "  Request ID:  %s\n", entry.RequestID)
		}
		printTime(p.writer, "Initiated", entry.InitiatedAt)
		printTime(p.writer, "Unlocks", entry.UnlockAt)
		printTime(p.writer, "Executed", entry.ExecutedAt)
		printTime(p.writer, "Cancelled", entry.CancelledAt)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func printTime(w io.Writer, label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(w, "  %-12s %s\n", label+":", t.Format(time.RFC3339))
}

// PrintOwnerList prints a list of owner IDs
func (p *Printer) PrintOwnerList(owners []string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"owners": owners,
		})
	case OutputFormatText:
		if len(owners) == 0 {
			fmt.Fprintln(p.writer, "No owners found")
			return nil
		}
		fmt.Fprintln(p.writer, "Owners:")
		fmt.Fprintf(p.writer, "  %s\n", strings.Join(owners, "\n  "))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
