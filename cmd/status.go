package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/store"
)

var statusProject string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show candidate counts per status for a project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountByStatus(ctx, statusProject)
		if err != nil {
			return eris.Wrap(err, "status: count candidates")
		}

		total := 0
		for _, status := range []model.CandidateStatus{
			model.StatusPending,
			model.StatusValidated,
			model.StatusExcluded,
			model.StatusArchived,
			model.StatusBuffer,
		} {
			n := counts[status]
			total += n
			cmd.Printf("%-10s %d\n", status, n)
		}
		cmd.Printf("%-10s %d\n", "total", total)

		candidates, err := st.ListCandidates(ctx, store.CandidateFilter{ProjectID: statusProject})
		if err != nil {
			return eris.Wrap(err, "status: list candidates")
		}
		if len(candidates) == 0 {
			return nil
		}

		// Score distribution in 20-point buckets, 100 counted with 80+.
		var buckets [5]int
		for _, c := range candidates {
			i := c.MatchScore / 20
			if i > 4 {
				i = 4
			}
			buckets[i]++
		}
		cmd.Println()
		labels := []string{"0-19", "20-39", "40-59", "60-79", "80-100"}
		for i, n := range buckets {
			cmd.Printf("%-7s %4d %s\n", labels[i], n, strings.Repeat("#", n))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusProject, "project", "", "project ID (required)")
	_ = statusCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(statusCmd)
}
