package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slidekeeper/internal/store"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stream, slide and session",
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if !yes && !confirm(cmd, texts.Get("slide.confirm_clear", map[string]any{"count": stats.TotalSlides})) {
					return errNotConfirmed
				}
				directive, err := st.ClearAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear slide store: %w", err)
				}
				removed, err := meta.Apply(cmd.Context(), directive)
				if err != nil {
					return fmt.Errorf("purge stream metadata: %w", err)
				}
				fmt.Fprintln(out, texts.Get("storage.cleared", nil))
				if removed > 0 {
					fmt.Fprintln(out, texts.Get("storage.metadata_purged", map[string]any{"count": removed}))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newRepairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Recompute per-stream slide counts from saved slides",
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			return ctx.withStore(func(st *store.Store) error {
				fixed, err := st.RepairSlideCounts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), texts.Get("storage.repaired", map[string]any{"count": fixed}))
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage usage and database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return fmt.Errorf("check database health: %w", err)
				}
				profile := ctx.profile()

				integrity := yesNo(health.IntegrityCheck)
				if health.Error != "" {
					integrity = "error: " + health.Error
				}
				missing := "-"
				if len(health.MissingTables) > 0 {
					missing = strings.Join(health.MissingTables, ", ")
				}
				rows := [][]string{
					{"Streams", strconv.Itoa(stats.TotalStreams)},
					{"Slides", strconv.Itoa(stats.TotalSlides)},
					{"Size", stats.FormattedSize},
					{"Database", health.DBPath},
					{"Schema version", strconv.Itoa(health.SchemaVersion)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Integrity", integrity},
					{"Missing tables", missing},
					{"Device tier", string(profile.Tier)},
					{"Check interval", profile.CheckInterval.String()},
					{"Preview cache", strconv.Itoa(profile.MaxMemorySlides)},
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]column{left("Metric"), left("Value")}, rows, nil))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}
