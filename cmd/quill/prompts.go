package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/prompts"
	"github.com/jackzampolin/quill/internal/story"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List, show and export prompt templates",
	Long: `Prompts are Go templates embedded in the binary. Any of them can be
overridden by a file named <key>.tmpl in the prompt directory
(prompts.dir, default ~/.quill/prompts).`,
}

type promptInfo struct {
	Key         string   `json:"key" yaml:"key"`
	Description string   `json:"description" yaml:"description"`
	Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Override    string   `json:"override,omitempty" yaml:"override,omitempty"`
}

func promptResolver(cmd *cobra.Command) (*prompts.Resolver, *env, error) {
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, nil, err
	}
	dir := e.config.Prompts.Dir
	if dir == "" {
		dir = e.home.PromptsDir()
	}
	return story.NewPromptResolver(dir, e.logger), e, nil
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, e, err := promptResolver(cmd)
		if err != nil {
			return err
		}
		var out []promptInfo
		for _, p := range r.AllEmbedded() {
			info := promptInfo{Key: p.Key, Description: p.Description, Variables: p.Variables}
			if resolved, err := r.Resolve(p.Key); err == nil && resolved.IsOverride {
				info.Override = resolved.Source
			}
			out = append(out, info)
		}
		return e.printer.Print(out)
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the effective text of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, e, err := promptResolver(cmd)
		if err != nil {
			return err
		}
		p, err := r.Resolve(args[0])
		if err != nil {
			return err
		}
		return e.printer.Print(p)
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write the embedded prompts to a directory for editing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, e, err := promptResolver(cmd)
		if err != nil {
			return err
		}
		dir := e.home.PromptsDir()
		if e.config.Prompts.Dir != "" {
			dir = e.config.Prompts.Dir
		}
		if len(args) == 1 {
			dir = args[0]
		}
		written, err := r.ExportDefaults(dir)
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
		if len(written) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "all prompts already present in %s\n", dir)
		}
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	promptsCmd.AddCommand(promptsExportCmd)
}
