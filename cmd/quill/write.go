package main

import (
	"github.com/spf13/cobra"
)

var writeFlags storyFlags

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a complete story",
	Long: `Write a complete story from a premise.

The premise comes from --plot, --plot-file or story.plot in the config.
Each run gets its own session directory holding the transcript, the
chapter plan (chapters.json), the story text and an epub.

Examples:
  quill write
  quill write --plot "A lighthouse keeper finds a door in the sea." --chapters 6
  quill write --provider mock --chapters 3     # offline dry run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStory(cmd, &writeFlags, false)
	},
}

func init() {
	writeFlags.register(writeCmd)
}
