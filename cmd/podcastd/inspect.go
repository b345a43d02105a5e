package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/app"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/topics"
)

var profileID string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the topics the host can talk about",
	RunE:  runTopics,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit the listener memory",
	Long: `Inspect and edit the listener memory.

Subcommands:
  show    - Print the stored memory record as JSON
  set     - Store a listener preference`,
	RunE: runMemoryShow,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored memory record as JSON",
	RunE:  runMemoryShow,
}

var memorySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a listener preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemorySet,
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&profileID, "profile", "", "memory profile (default MEMORY_PROFILE_ID)")
}

func runTopics(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	cat, err := topics.NewFileSource(cfg.TopicsFile).Load(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(cat.Topics) == 0 {
		fmt.Fprintf(out, "no topics in %s\n", cfg.TopicsFile)
		return nil
	}
	fmt.Fprintf(out, "%d topics (fetched: %s)\n", len(cat.Topics), cat.FetchedAt)
	for _, t := range cat.Topics {
		line := fmt.Sprintf("%3d. %s", t.ID, t.Title)
		if t.Source != "" {
			line += " [" + t.Source + "]"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runMemoryShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	mem, err := app.OpenMemory(ctx, cfg)
	if err != nil {
		return err
	}
	defer mem.Close()

	rec, err := mem.Record(ctx, profileOr(cfg.MemoryProfileID))
	if err != nil {
		return err
	}
	raw, err := sonic.ConfigStd.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}

func runMemorySet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	mem, err := app.OpenMemory(ctx, cfg)
	if err != nil {
		return err
	}
	defer mem.Close()

	if err := mem.SetPreference(ctx, profileOr(cfg.MemoryProfileID), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s=%s\n", strings.TrimSpace(args[0]), args[1])
	return nil
}

func profileOr(fallback string) string {
	if p := strings.TrimSpace(profileID); p != "" {
		return p
	}
	return fallback
}
