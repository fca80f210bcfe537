package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundsync/internal/warehouse"
)

var uploadCmd = &cobra.Command{
	Use:   "upload-bigquery",
	Short: "Upload existing staging and curated CSVs to the warehouse",
	Long:  "Loads <output>/staging/*.csv and <output>/curated/*.csv, replacing each destination table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		up, err := warehouse.New(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "upload: warehouse")
		}
		defer up.Close() //nolint:errcheck

		return newRunner().UploadDir(ctx, up, layout())
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
