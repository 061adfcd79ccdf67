package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/acquire-cli/internal/model"
)

func TestWriteScoreWorkbook(t *testing.T) {
	records := []model.ScoringRecord{
		{
			ID:            "score-1",
			BusinessID:    "biz-1",
			RecordVersion: 2,
			Components: model.ScoringComponents{
				PriceEfficiency: 80,
				RevenueQuality:  75,
				Moat:            60,
				AILeverage:      70,
				Operations:      85,
				Risk:            65,
				Trust:           90,
			},
			TotalScore:    76.5,
			Tier:          model.TierB,
			TopBuyReasons: []string{"High margins", "Low churn"},
			TopRisks:      []string{"Platform dependence"},
			Rationale:     "Solid SaaS fundamentals",
			CreatedAt:     time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
	}

	path := filepath.Join(t.TempDir(), "scores.xlsx")
	require.NoError(t, writeScoreWorkbook(path, records))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)

	sheet := wb.Sheets[0]
	assert.Equal(t, "Scores", sheet.Name)
	require.Len(t, sheet.Rows, 2)

	header := sheet.Rows[0]
	assert.Equal(t, "Business Id", header.Cells[0].String())
	assert.Equal(t, "Total Score", header.Cells[2].String())
	assert.Equal(t, "Ai Leverage", header.Cells[7].String())

	row := sheet.Rows[1]
	assert.Equal(t, "biz-1", row.Cells[0].String())
	tier := row.Cells[3].String()
	assert.Equal(t, "B", tier)
	total, err := row.Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 76.5, total, 0.001)
	assert.Equal(t, "High margins; Low churn", row.Cells[11].String())
	assert.Equal(t, "2026-03-15 10:30:00", row.Cells[14].String())
}

func TestWriteScoreWorkbookEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, writeScoreWorkbook(path, nil))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	// Header row only.
	assert.Len(t, wb.Sheets[0].Rows, 1)
}
