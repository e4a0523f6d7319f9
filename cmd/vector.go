package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kortex-hq/radar-cli/internal/vector"
)

var (
	vectorProject      string
	vectorUser         string
	vectorDNAPath      string
	vectorInsightsPath string
	vectorChunksPath   string
	vectorPrint        bool
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Build the agency capability vector and cache it for scoring",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var dna map[string]any
		if vectorDNAPath != "" {
			if err := readJSONFile(vectorDNAPath, &dna); err != nil {
				return eris.Wrap(err, "vector: read agency DNA")
			}
		}

		var insights []map[string]any
		if vectorInsightsPath != "" {
			if err := readJSONFile(vectorInsightsPath, &insights); err != nil {
				return eris.Wrap(err, "vector: read document insights")
			}
		}

		var chunks []string
		if vectorChunksPath != "" {
			if err := readJSONFile(vectorChunksPath, &chunks); err != nil {
				return eris.Wrap(err, "vector: read extracted chunks")
			}
		}

		rules, err := vector.LoadRules(cfg.Signals.RulesPath)
		if err != nil {
			return eris.Wrap(err, "vector: load signal rules")
		}

		av := vector.NewBuilder(rules).BuildAgencyVector(dna, insights, chunks)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetAgencyVector(ctx, vectorProject, vectorUser, av); err != nil {
			return eris.Wrap(err, "vector: save")
		}

		zap.L().Info("agency vector cached",
			zap.String("project_id", vectorProject),
			zap.Int("skills", len(av.Skills)),
			zap.Int("case_studies", len(av.CaseStudies)),
			zap.Int("hidden_signals", len(av.HiddenSignals)),
		)

		if vectorPrint {
			out, err := json.MarshalIndent(av, "", "  ")
			if err != nil {
				return eris.Wrap(err, "vector: marshal")
			}
			cmd.Println(string(out))
		}
		return nil
	},
}

func init() {
	vectorCmd.Flags().StringVar(&vectorProject, "project", "", "project ID (required)")
	vectorCmd.Flags().StringVar(&vectorUser, "user", "", "acting user ID")
	vectorCmd.Flags().StringVar(&vectorDNAPath, "dna", "", "path to agency DNA JSON")
	vectorCmd.Flags().StringVar(&vectorInsightsPath, "insights", "", "path to document insights JSON")
	vectorCmd.Flags().StringVar(&vectorChunksPath, "chunks", "", "path to extracted text chunks JSON")
	vectorCmd.Flags().BoolVar(&vectorPrint, "print", false, "print the built vector")
	_ = vectorCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(vectorCmd)
}
