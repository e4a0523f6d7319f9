package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kortex-hq/radar-cli/internal/engine"
	"github.com/kortex-hq/radar-cli/internal/model"
)

var (
	scoreAgencyPath string
	scoreLeadPath   string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a lead against an agency vector",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var agency model.AgencyVector
		if err := readJSONFile(scoreAgencyPath, &agency); err != nil {
			return eris.Wrap(err, "score: read agency vector")
		}

		var lead model.LeadVector
		if err := readJSONFile(scoreLeadPath, &lead); err != nil {
			return eris.Wrap(err, "score: read lead vector")
		}

		breakdown := engine.CalculateMatchScore(&agency, &lead)

		out, err := json.MarshalIndent(breakdown, "", "  ")
		if err != nil {
			return eris.Wrap(err, "score: marshal result")
		}
		cmd.Println(string(out))
		return nil
	},
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func init() {
	scoreCmd.Flags().StringVar(&scoreAgencyPath, "agency", "", "path to agency vector JSON (required)")
	scoreCmd.Flags().StringVar(&scoreLeadPath, "lead", "", "path to lead vector JSON (required)")
	_ = scoreCmd.MarkFlagRequired("agency")
	_ = scoreCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(scoreCmd)
}
