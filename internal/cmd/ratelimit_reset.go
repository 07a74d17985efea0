package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoguard/ecoguard/internal/output"
)

var (
	rateLimitResetAll    bool
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetOutput string
	rateLimitResetOut    string
	rateLimitResetOutDir string
)

// resetResult is what a reset reports.
type resetResult struct {
	Prefix  string `json:"prefix"`
	Matched int    `json:"matched"`
	Deleted int64  `json:"deleted"`
	DryRun  bool   `json:"dry_run"`
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete rate limit counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
		if err != nil {
			return err
		}

		prefix, err := resetPrefix(rateLimitResetAll, rateLimitResetPrefix, rateLimitResetYes, rateLimitResetDryRun)
		if err != nil {
			return err
		}

		target := reportTarget{file: rateLimitResetOut, dir: rateLimitResetOutDir, stem: "ratelimit.reset"}
		if _, err := target.path(format); err != nil {
			return err
		}

		b, err := openAdminBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close() // nolint:errcheck // best-effort cleanup

		matched, err := b.admin.List(cmd.Context(), prefix)
		if err != nil {
			return err
		}

		result := resetResult{Prefix: prefix, Matched: len(matched), DryRun: rateLimitResetDryRun}
		if !rateLimitResetDryRun {
			result.Deleted, err = b.admin.Reset(cmd.Context(), prefix)
			if err != nil {
				return err
			}
		}

		w, closeOut, err := target.open(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}
		defer func() { _ = closeOut() }()

		return writeResetResult(format, w, result)
	},
}

// resetPrefix resolves the flag combination into the prefix handed to
// Admin.Reset. An empty prefix means every counter.
func resetPrefix(all bool, prefix string, yes, dryRun bool) (string, error) {
	prefix = strings.TrimSpace(prefix)
	switch {
	case all && prefix != "":
		return "", errors.New("--all and --prefix are mutually exclusive")
	case !all && prefix == "":
		return "", errors.New("specify --prefix or --all")
	case all && !yes && !dryRun:
		return "", errors.New("--all requires --yes (or use --dry-run)")
	}
	return prefix, nil
}

func writeResetResult(format output.Format, w io.Writer, result resetResult) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	scope := "all keys"
	if result.Prefix != "" {
		scope = fmt.Sprintf("prefix %q", result.Prefix)
	}
	if result.DryRun {
		_, err := fmt.Fprintf(w, "Would delete %d rate limit counter(s) for %s\n", result.Matched, scope)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d rate limit counter(s) for %s\n", result.Deleted, result.Matched, scope)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every counter")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset counters whose key has this prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOut, "out", "", "Write output to a file (default stdout)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutDir, "out-dir", "", "Write output to a directory")
}
