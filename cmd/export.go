package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/store"
)

var (
	exportProject  string
	exportOutPath  string
	exportStatuses []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's candidate pool to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var statuses []model.CandidateStatus
		for _, s := range exportStatuses {
			status := model.CandidateStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return eris.Errorf("invalid status: %s", s)
			}
			statuses = append(statuses, status)
		}

		candidates, err := st.ListCandidates(ctx, store.CandidateFilter{
			ProjectID: exportProject,
			Statuses:  statuses,
		})
		if err != nil {
			return eris.Wrap(err, "export: list candidates")
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Candidates")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{"Company", "Industry", "Headcount", "Location", "Score", "Status", "Explanation", "Buying Signals"} {
			header.AddCell().Value = h
		}

		for _, c := range candidates {
			row := sheet.AddRow()
			row.AddCell().Value = c.CompanyName
			row.AddCell().Value = c.Industry
			row.AddCell().Value = c.Headcount
			row.AddCell().Value = c.Location
			row.AddCell().SetInt(c.MatchScore)
			row.AddCell().Value = string(c.Status)
			row.AddCell().Value = c.MatchExplanation
			row.AddCell().Value = strings.Join(c.BuyingSignals, "; ")
		}

		if err := file.Save(exportOutPath); err != nil {
			return eris.Wrap(err, "export: save workbook")
		}

		zap.L().Info("export complete",
			zap.Int("candidates", len(candidates)),
			zap.String("project_id", exportProject),
			zap.String("out", exportOutPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "project ID (required)")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "candidates.xlsx", "output XLSX path")
	exportCmd.Flags().StringSliceVar(&exportStatuses, "status", nil, "filter by status (repeatable; default all)")
	_ = exportCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(exportCmd)
}
