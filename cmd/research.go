package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/acquire-cli/internal/research"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

var (
	researchSector     string
	researchBusinessID string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run deep sector research with parallel sector agents",
	Long:  "Fans out five sector research agents (market structure, platform risk, monetization, competition, exit) for a sector description and synthesizes their findings into a verdict.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.Research.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Research.TimeoutSecs)*time.Second)
			defer cancel()
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		client := anthropic.WithCircuitBreaker(
			anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSecond),
			anthropic.NewDefaultBreaker(),
		)
		retry := retryFromConfig()

		sectorAgents := research.NewSectorAgents(client, cfg.Anthropic.SonnetModel, cfg.Research.MaxTokensPerAgent, retry)
		synth := research.NewSynthesizer(client, cfg.Anthropic.SonnetModel, cfg.Research.MaxTokensPerAgent, retry)

		runner, err := research.NewRunner(sectorAgents, synth, st)
		if err != nil {
			return err
		}

		result, err := runner.Run(ctx, researchSector, researchBusinessID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchSector, "sector", "", "sector description to research (required)")
	researchCmd.Flags().StringVar(&researchBusinessID, "business-id", "", "business the research is attributed to in the audit log")
	_ = researchCmd.MarkFlagRequired("sector")
	rootCmd.AddCommand(researchCmd)
}
