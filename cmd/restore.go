package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var restoreActor string

var restoreCmd = &cobra.Command{
	Use:   "restore <entity-id> <version-id>",
	Short: "Restore a historical version as a new active version",
	Long: "Copies the metrics of a historical record into a brand-new version at\n" +
		"the head of the entity's history. History is never rewritten; the\n" +
		"restored version records its origin.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "restore: open store")
		}
		defer st.Close()

		rec, err := st.RestoreVersion(ctx, args[0], args[1], restoreActor)
		if err != nil {
			return err
		}
		zap.L().Info("version restored",
			zap.String("entity_id", rec.EntityID),
			zap.String("record_id", rec.ID),
			zap.Int("version", rec.Version),
			zap.Stringp("restored_from", rec.RestoredFrom),
		)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreActor, "actor", "cli", "actor recorded in attribution")
	rootCmd.AddCommand(restoreCmd)
}
