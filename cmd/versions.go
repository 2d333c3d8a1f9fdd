package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <entity-id>",
	Short: "List the version history of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "versions: open store")
		}
		defer st.Close()

		recs, err := st.ListVersions(ctx, args[0])
		if err != nil {
			return err
		}

		type row struct {
			ID               string   `json:"id"`
			Version          int      `json:"version"`
			IsActive         bool     `json:"is_active"`
			PreviousVersion  *string  `json:"previous_version,omitempty"`
			RestoredFrom     *string  `json:"restored_from,omitempty"`
			ImportSource     string   `json:"import_source"`
			SourceFileName   string   `json:"source_file_name,omitempty"`
			ImportBatchID    string   `json:"import_batch_id"`
			ValidationStatus string   `json:"validation_status"`
			DataQualityScore *float64 `json:"data_quality_score,omitempty"`
			Metrics          int      `json:"metrics"`
		}
		rows := make([]row, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, row{
				ID:               r.ID,
				Version:          r.Version,
				IsActive:         r.IsActive,
				PreviousVersion:  r.PreviousVersion,
				RestoredFrom:     r.RestoredFrom,
				ImportSource:     r.ImportSource,
				SourceFileName:   r.SourceFileName,
				ImportBatchID:    r.ImportBatchID,
				ValidationStatus: string(r.ValidationStatus),
				DataQualityScore: r.DataQualityScore,
				Metrics:          len(r.Metrics),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return eris.Wrap(err, "versions: encode")
		}
		zap.L().Info("versions listed", zap.String("entity_id", args[0]), zap.Int("count", len(recs)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}
