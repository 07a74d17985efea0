package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoguard/ecoguard/internal/output"
)

var (
	rateLimitListOutput string
	rateLimitListOut    string
	rateLimitListOutDir string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked rate limit counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}

		b, err := openAdminBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close() // nolint:errcheck // best-effort cleanup

		records, err := b.admin.List(cmd.Context(), strings.TrimSpace(rateLimitListPrefix))
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatRecords(output.RecordViews(records, time.Now()))
		if err != nil {
			return err
		}

		target := reportTarget{file: rateLimitListOut, dir: rateLimitListOutDir, stem: "ratelimit.list"}
		w, closeOut, err := target.open(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}
		defer func() { _ = closeOut() }()

		_, err = fmt.Fprintln(w, rendered)
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOut, "out", "", "Write output to a file (default stdout)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutDir, "out-dir", "", "Write output to a directory")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "Only list keys with this prefix (e.g. a client IP)")
}
