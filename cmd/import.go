package main

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kortex-hq/radar-cli/internal/engine"
	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/pkg/firecrawl"
)

var (
	importProject string
	importCSVPath string
	importBuffer  bool
	importScrape  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import candidates from CSV, score them, and load the pool",
	Long:  "Reads a prospect CSV (name, industry, headcount, location, description, buying signals, website), scores each row against the project's cached agency vector, and upserts the results.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		agency, err := st.GetAgencyVector(ctx, importProject)
		if err != nil {
			return eris.Wrap(err, "import: load agency vector")
		}
		if agency == nil {
			return eris.Errorf("no agency vector cached for project %s, run `radar-cli vector` first", importProject)
		}

		var scraper firecrawl.Client
		if importScrape {
			if cfg.Firecrawl.Key == "" {
				return eris.New("firecrawl key is required for --scrape (RADAR_FIRECRAWL_KEY)")
			}
			scraper = firecrawl.NewClient(cfg.Firecrawl.Key,
				firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
				firecrawl.WithRateLimit(cfg.Firecrawl.RequestsPerSecond),
			)
		}

		rows, err := readCandidateCSV(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "import: read csv")
		}

		status := model.StatusPending
		if importBuffer {
			status = model.StatusBuffer
		}

		candidates := make([]model.Candidate, 0, len(rows))
		for _, row := range rows {
			lead := &model.LeadVector{
				CompanyName:   row.name,
				Industry:      row.industry,
				Size:          row.headcount,
				Location:      row.location,
				BuyingSignals: row.buyingSignals,
			}

			if scraper != nil && row.website != "" {
				page, err := scraper.Scrape(ctx, row.website)
				if err != nil {
					zap.L().Warn("import: scrape failed, scoring without site content",
						zap.String("company", row.name),
						zap.String("url", row.website),
						zap.Error(err),
					)
				} else {
					lead.ScrapedContent = page.Markdown
				}
			}

			breakdown := engine.CalculateMatchScore(agency, lead)
			candidates = append(candidates, model.Candidate{
				ID:               uuid.New().String(),
				ProjectID:        importProject,
				CompanyName:      row.name,
				Industry:         row.industry,
				Headcount:        row.headcount,
				Location:         row.location,
				Description:      row.description,
				BuyingSignals:    row.buyingSignals,
				MatchScore:       breakdown.TotalScore,
				MatchExplanation: breakdown.MatchReason,
				Status:           status,
			})
		}

		upserted, err := st.BulkUpsertCandidates(ctx, candidates)
		if err != nil {
			return eris.Wrap(err, "import: upsert candidates")
		}

		zap.L().Info("import complete",
			zap.Int64("upserted", upserted),
			zap.String("project_id", importProject),
			zap.String("status", string(status)),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

type candidateRow struct {
	name          string
	industry      string
	headcount     string
	location      string
	description   string
	buyingSignals []string
	website       string
}

// readCandidateCSV parses a header-first CSV. Recognized headers: name,
// industry, headcount, location, description, signals (semicolon separated),
// website. Unknown columns are ignored.
func readCandidateCSV(path string) ([]candidateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, eris.New("csv missing required column: name")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []candidateRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read record")
		}

		row := candidateRow{
			name:        field(record, "name"),
			industry:    field(record, "industry"),
			headcount:   field(record, "headcount"),
			location:    field(record, "location"),
			description: field(record, "description"),
			website:     field(record, "website"),
		}
		if row.name == "" {
			continue
		}
		for _, s := range strings.Split(field(record, "signals"), ";") {
			if s = strings.TrimSpace(s); s != "" {
				row.buyingSignals = append(row.buyingSignals, s)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func init() {
	importCmd.Flags().StringVar(&importProject, "project", "", "project ID (required)")
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().BoolVar(&importBuffer, "buffer", false, "load rows into the buffer pool instead of pending")
	importCmd.Flags().BoolVar(&importScrape, "scrape", false, "scrape each row's website for richer scoring")
	_ = importCmd.MarkFlagRequired("project")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
