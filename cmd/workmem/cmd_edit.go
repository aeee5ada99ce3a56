package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"workmem/internal/memory"
)

var (
	flagType  string
	flagTitle string
	flagTags  []string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Add a new memory entry",
	Args:  cobra.ExactArgs(1),
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

		entry, err := svc.Remember(cmd.Context(), ws, memory.EntryType(flagType), args[0], flagTitle, flagTags)
		if err != nil {
			return err
		}
		fmt.Printf("remembered %s (%s)\n", entry.ID, entry.Type)
		return nil
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin an entry so retrieval always includes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Remove an entry's pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], false)
	},
}

func setPinned(cmd *cobra.Command, id string, pinned bool) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	svc, cleanup, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.Pin(cmd.Context(), ws, id, pinned)
	if err != nil {
		return err
	}
	if !result.Updated {
		fmt.Printf("no entry with id %s\n", id)
		return nil
	}
	if pinned {
		fmt.Printf("pinned %s\n", id)
	} else {
		fmt.Printf("unpinned %s\n", id)
	}
	return nil
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Permanently remove an entry",
	Args:  cobra.ExactArgs(1),
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

		result, err := svc.Forget(cmd.Context(), ws, args[0])
		if err != nil {
			return err
		}
		if result.Removed {
			fmt.Printf("forgot %s\n", args[0])
		} else {
			fmt.Printf("no entry with id %s\n", args[0])
		}
		return nil
	},
}

func init() {
	rememberCmd.Flags().StringVarP(&flagType, "type", "t", string(memory.TypeProjectConvention), "entry type")
	rememberCmd.Flags().StringVar(&flagTitle, "title", "", "optional short title")
	rememberCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "tag (repeatable)")

	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(forgetCmd)
}
