package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"workmem/internal/memory"
)

var (
	flagQuery         string
	flagLimit         int
	flagMaxChars      int
	flagIncludePinned bool
	flagTypes         []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entries in the workspace store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		svc, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.List(cmd.Context(), ws)
		if err != nil {
			return err
		}

		if len(result.Entries) == 0 {
			fmt.Println("no entries")
			return nil
		}
		for _, e := range result.Entries {
			pin := " "
			if e.Pinned {
				pin = "*"
			}
			line := fmt.Sprintf("%s %-18s %s", pin, e.Type, e.ID)
			if e.Title != "" {
				line += "  " + e.Title
			}
			fmt.Println(line)
		}
		if result.Continuation != nil {
			fmt.Printf("\ncontinuation: %s (updated %s)\n",
				result.Continuation.ID, result.Continuation.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve a ranked, budget-bounded context block",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		svc, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.Retrieve(cmd.Context(), ws, memory.RetrieveOptions{
			Query:         flagQuery,
			Limit:         flagLimit,
			MaxChars:      flagMaxChars,
			IncludePinned: flagIncludePinned,
			Types:         flagTypes,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Context)
		if flagVerbose {
			d := result.Diagnostics
			fmt.Printf("\n-- considered=%d selected=%d skipped_type=%d skipped_budget=%d pinned_included=%d\n",
				d.Considered, d.Selected, d.SkippedType, d.SkippedBudget, d.PinnedIncluded)
		}
		return nil
	},
}

func init() {
	retrieveCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "retrieval query (required)")
	retrieveCmd.Flags().IntVar(&flagLimit, "limit", 10, "maximum entries to include")
	retrieveCmd.Flags().IntVar(&flagMaxChars, "max-chars", 4000, "character budget for the context block")
	retrieveCmd.Flags().BoolVar(&flagIncludePinned, "pinned", true, "force pinned entries into the result")
	retrieveCmd.Flags().StringSliceVar(&flagTypes, "type", nil, "restrict to entry types (repeatable)")
	_ = retrieveCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(retrieveCmd)
}
