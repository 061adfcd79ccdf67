package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

var (
	exportOut      string
	exportTier     string
	exportMinScore float64
	exportLimit    int
)

// exportColumns are the snake_case column keys, in sheet order.
var exportColumns = []string{
	"business_id", "record_version", "total_score", "tier",
	"price_efficiency", "revenue_quality", "moat", "ai_leverage",
	"operations", "risk", "trust",
	"top_buy_reasons", "top_risks", "rationale", "scored_at",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scoring records to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		records, err := st.ListScoringRecords(ctx, store.ScoreFilter{
			Tier:     model.Tier(exportTier),
			MinScore: exportMinScore,
			Limit:    exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list scoring records")
		}

		if err := writeScoreWorkbook(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("out", exportOut),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func writeScoreWorkbook(path string, records []model.ScoringRecord) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Scores")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	title := cases.Title(language.English)
	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().SetString(title.String(strings.ReplaceAll(col, "_", " ")))
	}

	for i := range records {
		appendScoreRow(sheet, &records[i])
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrapf(err, "save workbook %s", path)
	}
	return nil
}

func appendScoreRow(sheet *xlsx.Sheet, sr *model.ScoringRecord) {
	row := sheet.AddRow()
	row.AddCell().SetString(sr.BusinessID)
	row.AddCell().SetInt(sr.RecordVersion)
	row.AddCell().SetFloat(sr.TotalScore)
	row.AddCell().SetString(string(sr.Tier))
	row.AddCell().SetFloat(sr.Components.PriceEfficiency)
	row.AddCell().SetFloat(sr.Components.RevenueQuality)
	row.AddCell().SetFloat(sr.Components.Moat)
	row.AddCell().SetFloat(sr.Components.AILeverage)
	row.AddCell().SetFloat(sr.Components.Operations)
	row.AddCell().SetFloat(sr.Components.Risk)
	row.AddCell().SetFloat(sr.Components.Trust)
	row.AddCell().SetString(strings.Join(sr.TopBuyReasons, "; "))
	row.AddCell().SetString(strings.Join(sr.TopRisks, "; "))
	row.AddCell().SetString(sr.Rationale)
	row.AddCell().SetString(sr.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "scores.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportTier, "tier", "", "only export records in this tier (A-D)")
	exportCmd.Flags().Float64Var(&exportMinScore, "min-score", 0, "only export records at or above this total score")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum records to export (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
