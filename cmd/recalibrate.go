package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/recalibrate"
)

var (
	recalProject string
	recalCompany string
	recalUser    string
	recalAction  string
	recalKey     string
)

var recalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Apply validate/exclude feedback and resweep the candidate pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := recalibrate.NewService(st, recalibrate.Config{
			RelevanceThreshold: cfg.Engine.RelevanceThreshold,
			ExcludeAdjustment:  cfg.Engine.ExcludeAdjustment,
			ValidateAdjustment: cfg.Engine.ValidateAdjustment,
			ResweepConcurrency: cfg.Engine.ResweepConcurrency,
			SaveRetries:        cfg.Engine.SaveRetries,
		})

		result, err := svc.Recalibrate(ctx, recalibrate.Request{
			ProjectID:      recalProject,
			CandidateID:    recalCompany,
			UserID:         recalUser,
			Action:         model.FeedbackAction(recalAction),
			IdempotencyKey: recalKey,
		})
		if err != nil {
			return eris.Wrap(err, "recalibrate")
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "recalibrate: marshal result")
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	recalibrateCmd.Flags().StringVar(&recalProject, "project", "", "project ID (required)")
	recalibrateCmd.Flags().StringVar(&recalCompany, "company", "", "candidate company ID (required)")
	recalibrateCmd.Flags().StringVar(&recalUser, "user", "", "acting user ID")
	recalibrateCmd.Flags().StringVar(&recalAction, "action", "", `feedback action: "exclude" or "validate" (required)`)
	recalibrateCmd.Flags().StringVar(&recalKey, "idempotency-key", "", "dedupe key for safe retries")
	_ = recalibrateCmd.MarkFlagRequired("project")
	_ = recalibrateCmd.MarkFlagRequired("company")
	_ = recalibrateCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(recalibrateCmd)
}
