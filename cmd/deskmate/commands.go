package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/deskmate/internal/config"
)

type faqEntry struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

type memoryTurn struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the assistant as a user",
	Long: `Send a message to the assistant as a user.

Examples:
  deskmate chat --user alice "How do I reopen a closed ticket?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if strings.TrimSpace(user) == "" {
			return fmt.Errorf("--user is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asUser(user).post(cmd.Context(), "/chat/message", map[string]string{
			"message": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(dataOut, result.Response)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a user's recent conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		if strings.TrimSpace(user) == "" {
			return fmt.Errorf("--user is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asUser(user).get(cmd.Context(), fmt.Sprintf("/chat/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var turns []memoryTurn
		if err := decodeJSON(resp, &turns); err != nil {
			return err
		}

		if len(turns) == 0 {
			fmt.Fprintln(dataOut, "No conversation yet.")
			return nil
		}
		for _, t := range turns {
			fmt.Fprintf(dataOut, "%s\n  %s %s\n  %s %s\n",
				colorize(colorCyan, t.CreatedAt),
				colorize(colorBold, "User:"), t.Message,
				colorize(colorBold, "Assistant:"), t.Response,
			)
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but a user's most recent turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		keep, _ := cmd.Flags().GetInt("keep")
		if strings.TrimSpace(user) == "" {
			return fmt.Errorf("--user is required")
		}
		if keep < 0 {
			return fmt.Errorf("--keep must not be negative")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asUser(user).asAdmin().delete(cmd.Context(), fmt.Sprintf("/chat/history?keep=%d", keep))
		if err != nil {
			return err
		}

		var result struct {
			Deleted   int `json:"deleted"`
			Remaining int `json:"remaining"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Pruned %d turns for %s (%d kept)", result.Deleted, user, result.Remaining)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("user", "", "user id to chat as")
	historyCmd.Flags().String("user", "", "user id whose history to show")
	historyCmd.Flags().Int("limit", 10, "maximum number of turns to show")

	historyPruneCmd.Flags().String("user", "", "user id whose history to prune")
	historyPruneCmd.Flags().Int("keep", 0, "number of most recent turns to keep")
	historyCmd.AddCommand(historyPruneCmd)
}

// --- faq ---

var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "Manage the FAQ knowledge base",
}

var faqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List FAQ entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/faq"
		if source != "" {
			path += "?source=" + url.QueryEscape(source)
		}
		resp, err := client.asAdmin().get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []faqEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if asJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(dataOut, "No FAQ entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(dataOut, "%s  [%s]  %s\n    %s\n",
				colorize(colorCyan, shortID(e.ID)),
				e.Source,
				colorize(colorBold, truncate(e.Question, 100)),
				truncate(e.Answer, 200),
			)
		}
		return nil
	},
}

var faqAddCmd = &cobra.Command{
	Use:   "add <question> <answer>",
	Short: "Add a manual FAQ entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asAdmin().post(cmd.Context(), "/faq", map[string]string{
			"question": args[0],
			"answer":   args[1],
		})
		if err != nil {
			return err
		}

		var e faqEntry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		printSuccess("Added FAQ entry %s", e.ID)
		return nil
	},
}

var faqRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an FAQ entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asAdmin().delete(cmd.Context(), "/faq/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted FAQ entry %s", args[0])
		return nil
	},
}

var faqExtractCmd = &cobra.Command{
	Use:   "extract <path-or-url>",
	Short: "Extract FAQ entries from a PDF, HTML or text document",
	Long: `Extract FAQ entries from a document.

The document is read by the server. Local paths must lie inside
faq.documents_dir or faq.inbox_dir; relative paths resolve against the first
of those that is set.

Examples:
  deskmate faq extract user-guide.pdf
  deskmate faq extract https://help.example.com/faq.html --async`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		async, _ := cmd.Flags().GetBool("async")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if !async {
			printStep("Extracting FAQ entries from %s...", args[0])
		}
		resp, err := client.asAdmin().post(cmd.Context(), "/faq/extract", map[string]any{
			"document": args[0],
			"async":    async,
		})
		if err != nil {
			return err
		}

		if async {
			var queued map[string]string
			if err := decodeJSON(resp, &queued); err != nil {
				return err
			}
			printSuccess("Queued extraction job %s", queued["job_id"])
			return nil
		}

		var result struct {
			Entries []faqEntry `json:"entries"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if len(result.Entries) == 0 {
			printWarning("No FAQ entries found in %s", args[0])
			return nil
		}
		for _, e := range result.Entries {
			fmt.Fprintf(dataOut, "%s  %s\n", colorize(colorCyan, shortID(e.ID)), truncate(e.Question, 100))
		}
		printSuccess("Extracted %d FAQ entries", len(result.Entries))
		return nil
	},
}

var faqLearnCmd = &cobra.Command{
	Use:   "learn <question> <answer>",
	Short: "Ask the assistant whether an exchange should become an FAQ entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.asAdmin().post(cmd.Context(), "/faq/learn", map[string]string{
			"question": args[0],
			"answer":   args[1],
		})
		if err != nil {
			return err
		}

		var result struct {
			Saved bool      `json:"saved"`
			Entry *faqEntry `json:"entry"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if !result.Saved || result.Entry == nil {
			printWarning("Exchange not saved: not general enough for the FAQ")
			return nil
		}
		printSuccess("Learned FAQ entry %s: %s", result.Entry.ID, result.Entry.Question)
		return nil
	},
}

func init() {
	faqListCmd.Flags().String("source", "", "filter by source (manual, pdf, conversation)")
	faqListCmd.Flags().Bool("json", false, "print entries as JSON")
	faqExtractCmd.Flags().Bool("async", false, "queue the extraction instead of waiting for it")

	faqCmd.AddCommand(faqListCmd)
	faqCmd.AddCommand(faqAddCmd)
	faqCmd.AddCommand(faqRmCmd)
	faqCmd.AddCommand(faqExtractCmd)
	faqCmd.AddCommand(faqLearnCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- ai ---

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Show or switch assistant availability",
}

var aiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the assistant is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/settings/ai")
		if err != nil {
			return err
		}
		var flag struct {
			Enabled   bool   `json:"enabled"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := decodeJSON(resp, &flag); err != nil {
			return err
		}
		printStatus("Assistant", "%s", enabledLabel(flag.Enabled))
		printStatus("Updated", "%s", flag.UpdatedAt)
		return nil
	},
}

func setAvailabilityCmd(enabled bool) *cobra.Command {
	use, short := "disable", "Disable the assistant for all users"
	if enabled {
		use, short = "enable", "Enable the assistant for all users"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := client.asAdmin().put(cmd.Context(), "/settings/ai", map[string]bool{"enabled": enabled})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			printSuccess("Assistant %s", enabledLabel(enabled))
			return nil
		},
	}
}

func init() {
	aiCmd.AddCommand(aiStatusCmd)
	aiCmd.AddCommand(setAvailabilityCmd(true))
	aiCmd.AddCommand(setAvailabilityCmd(false))
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(dataOut, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		printWarning("Restart the server for the change to take effect")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
