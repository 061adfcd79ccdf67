package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runBusinessID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for one business",
	Long:  "Canonicalizes the latest raw listing, scores the resulting record, and generates follow-up questions when the score is eligible.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, runBusinessID)
		if result != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(result); encErr != nil {
				zap.L().Warn("encode result", zap.Error(encErr))
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runBusinessID, "business-id", "", "business to process (required)")
	_ = runCmd.MarkFlagRequired("business-id")
	rootCmd.AddCommand(runCmd)
}
