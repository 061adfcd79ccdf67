package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var canonicalizeBusinessID string

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize",
	Short: "Extract a canonical record from the latest raw listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Canonicalize(ctx, canonicalizeBusinessID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	canonicalizeCmd.Flags().StringVar(&canonicalizeBusinessID, "business-id", "", "business to process (required)")
	_ = canonicalizeCmd.MarkFlagRequired("business-id")
	rootCmd.AddCommand(canonicalizeCmd)
}
