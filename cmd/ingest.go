package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

var ingestFile string

// Scraped pages can run well past bufio's default line limit.
const maxIngestLine = 16 * 1024 * 1024

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load raw listings from a JSONL file into the store",
	Long:  "Reads one raw listing per line from a JSONL file and appends each to the store. Postgres runs use a bulk COPY path; other backends insert row by row.",
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

		f, err := os.Open(ingestFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", ingestFile)
		}
		defer f.Close()

		listings, err := readListings(f)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			zap.L().Info("no listings to ingest", zap.String("file", ingestFile))
			return nil
		}

		inserted, err := insertListings(ctx, st, listings)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("file", ingestFile),
			zap.Int64("inserted", inserted),
		)
		return nil
	},
}

// readListings parses JSONL input into listings, filling in IDs and
// timestamps where the source omits them.
func readListings(r io.Reader) ([]model.RawListing, error) {
	var listings []model.RawListing
	now := time.Now().UTC()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxIngestLine)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l model.RawListing
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, eris.Wrapf(err, "line %d: parse listing", line)
		}
		if l.BusinessID == "" {
			return nil, eris.Errorf("line %d: missing business_id", line)
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.ScrapeTimestamp.IsZero() {
			l.ScrapeTimestamp = now
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		listings = append(listings, l)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read input")
	}

	return listings, nil
}

func insertListings(ctx context.Context, st store.Store, listings []model.RawListing) (int64, error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		n, err := pg.BulkInsertRawListings(ctx, listings)
		if err != nil {
			return 0, eris.Wrap(err, "bulk insert")
		}
		return n, nil
	}

	var inserted int64
	for i := range listings {
		if err := st.InsertRawListing(ctx, &listings[i]); err != nil {
			return inserted, eris.Wrapf(err, "insert listing %s", listings[i].ID)
		}
		inserted++
	}
	return inserted, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "JSONL file of raw listings (required)")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
