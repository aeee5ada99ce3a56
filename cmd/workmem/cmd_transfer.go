package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"workmem/internal/memory"
)

var (
	flagOut  string
	flagMode string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the workspace store as a snapshot document",
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

		snap, err := svc.Export(cmd.Context(), ws)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		if flagOut == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(flagOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		fmt.Printf("exported %d entries to %s\n", len(snap.Entries), flagOut)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a snapshot document (from a file or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}

		var snap memory.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("%w: %v", memory.ErrInvalidImportPayload, err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		svc, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.Import(cmd.Context(), ws, snap, memory.ImportMode(flagMode))
		if err != nil {
			return err
		}
		fmt.Printf("imported %d entries (mode=%s)\n", result.Imported, flagMode)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "", "write the snapshot to a file instead of stdout")
	importCmd.Flags().StringVar(&flagMode, "mode", string(memory.ModeMerge), "merge or replace")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
