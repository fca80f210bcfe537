package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var exportSiteDir string

var exportLocalCmd = &cobra.Command{
	Use:   "export-local",
	Short: "Run the full pipeline without uploading and print the written paths",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out, err := runLocal(ctx, newRunner(), exportSiteDir)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out.Summary())
	},
}

func init() {
	exportLocalCmd.Flags().StringVar(&exportSiteDir, "site-dir", "", "custom static site template directory")
	rootCmd.AddCommand(exportLocalCmd)
}
