package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var scoreBusinessID string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the latest canonical record for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Score(ctx, scoreBusinessID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreBusinessID, "business-id", "", "business to process (required)")
	_ = scoreCmd.MarkFlagRequired("business-id")
	rootCmd.AddCommand(scoreCmd)
}
