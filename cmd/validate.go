package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <entity-id>",
	Short: "Re-score the active record of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "validate: open store")
		}
		defer st.Close()

		rec, err := st.GetActiveRecord(ctx, args[0])
		if err != nil {
			return err
		}

		res, err := validate.NewRunner(st).Run(ctx, rec.ID)
		if err != nil {
			return err
		}
		for _, f := range res.Findings {
			zap.L().Warn("finding",
				zap.String("severity", f.Severity),
				zap.String("metric", f.MetricName),
				zap.String("message", f.Message),
				zap.Bool("critical", f.Critical),
			)
		}
		zap.L().Info("validation finished",
			zap.String("record_id", rec.ID),
			zap.String("status", string(res.Status)),
			zap.Float64("score", res.Score),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
