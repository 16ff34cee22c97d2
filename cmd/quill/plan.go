package main

import (
	"github.com/spf13/cobra"
)

var planFlags storyFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and validate a chapter plan without writing prose",
	Long: `Generate a synopsis and a validated chapter plan, then stop.

The plan is saved as chapters.json in a new session directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStory(cmd, &planFlags, true)
	},
}

func init() {
	planFlags.register(planCmd)
}
