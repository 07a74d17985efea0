package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:     "ratelimit",
	Aliases: []string{"rate-limit"},
	Short:   "Inspect and reset persisted rate limit counters",
	Long: `Inspect and reset rate limit counters held by the libsql or redis backend.

Counters of the memory backend live inside the serving process; use the
/api/ratelimit/records routes for those.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
