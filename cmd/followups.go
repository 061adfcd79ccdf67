package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var followUpsBusinessID string

var followUpsCmd = &cobra.Command{
	Use:   "follow-ups",
	Short: "Generate follow-up questions from the latest scoring record",
	Long:  "Analyzes the latest scored canonical record for uncertainties and generates seller follow-up questions. Businesses below the score and tier gate are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.FollowUps(ctx, followUpsBusinessID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	followUpsCmd.Flags().StringVar(&followUpsBusinessID, "business-id", "", "business to process (required)")
	_ = followUpsCmd.MarkFlagRequired("business-id")
	rootCmd.AddCommand(followUpsCmd)
}
