package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/llmcall"
)

var (
	callsSession string
	callsRole    string
	callsKey     string
	callsFailed  bool
	callsLimit   int
	callsFull    bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect recorded LLM calls",
}

var callsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded LLM calls",
	Long: `List recorded LLM calls, oldest first.

Examples:
  quill calls list --session 2024-03-09_14-05-07
  quill calls list --role plan --failed
  quill calls list --key stages.outline.strict -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		store, err := llmcall.OpenStore(cmd.Context(), e.home.CallsDBPath(), e.logger)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := llmcall.QueryFilter{
			SessionID: callsSession,
			Role:      callsRole,
			PromptKey: callsKey,
			Limit:     callsLimit,
		}
		if callsFailed {
			ok := false
			filter.Success = &ok
		}
		calls, err := store.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if !callsFull {
			for i := range calls {
				calls[i].Prompt = clip(calls[i].Prompt, 200)
				calls[i].Response = clip(calls[i].Response, 200)
			}
		}
		return e.printer.Print(calls)
	},
}

var callsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one recorded call in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		store, err := llmcall.OpenStore(cmd.Context(), e.home.CallsDBPath(), e.logger)
		if err != nil {
			return err
		}
		defer store.Close()

		call, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if call == nil {
			return fmt.Errorf("call not found: %s", args[0])
		}
		return e.printer.Print(call)
	},
}

type keyCount struct {
	PromptKey string `json:"prompt_key" yaml:"prompt_key"`
	Calls     int    `json:"calls" yaml:"calls"`
}

var callsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recorded calls per prompt key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		store, err := llmcall.OpenStore(cmd.Context(), e.home.CallsDBPath(), e.logger)
		if err != nil {
			return err
		}
		defer store.Close()

		counts, err := store.CountByPromptKey(cmd.Context(), callsSession)
		if err != nil {
			return err
		}
		out := make([]keyCount, 0, len(counts))
		for k, n := range counts {
			out = append(out, keyCount{PromptKey: k, Calls: n})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PromptKey < out[j].PromptKey })
		return e.printer.Print(out)
	},
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	callsListCmd.Flags().StringVar(&callsSession, "session", "", "filter by session")
	callsListCmd.Flags().StringVar(&callsRole, "role", "", "filter by role (plan, summary, prose)")
	callsListCmd.Flags().StringVar(&callsKey, "key", "", "filter by prompt key")
	callsListCmd.Flags().BoolVar(&callsFailed, "failed", false, "only failed calls")
	callsListCmd.Flags().IntVar(&callsLimit, "limit", 50, "maximum number of calls")
	callsListCmd.Flags().BoolVar(&callsFull, "full", false, "show full prompts and responses")

	callsStatsCmd.Flags().StringVar(&callsSession, "session", "", "limit to a session")

	callsCmd.AddCommand(callsListCmd)
	callsCmd.AddCommand(callsGetCmd)
	callsCmd.AddCommand(callsStatsCmd)
}
