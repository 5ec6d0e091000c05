package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slidekeeper/internal/store"
)

func newSlideCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slide",
		Short: "Save or delete a single slide",
	}
	cmd.AddCommand(newSlideSaveCommand(ctx))
	cmd.AddCommand(newSlideDeleteCommand(ctx))
	return cmd
}

func newSlideSaveCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "save SLIDE_ID",
		Short: "Write one slide's full-resolution image to a PNG file",
		Long: `Write one slide to disk. Without --output the file is named after the
capture time (slide_<time>_<zone>.png) in the current directory; an existing
directory as --output receives that name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slideID := strings.TrimSpace(args[0])
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			naming := ctx.naming()
			return ctx.withStore(func(st *store.Store) error {
				notFound := errors.New(texts.Get("slide.not_found", map[string]any{"id": slideID}))
				rec, err := st.GetSlide(cmd.Context(), slideID)
				if errors.Is(err, store.ErrSlideNotFound) {
					return notFound
				}
				if err != nil {
					return err
				}
				payload, err := st.GetSlideImage(cmd.Context(), slideID)
				if err != nil {
					return err
				}
				if payload == nil {
					return notFound
				}

				name := naming.SlideFileName(rec.CapturedAt)
				target := strings.TrimSpace(output)
				switch {
				case target == "":
					target = name
				case isDir(target):
					target = filepath.Join(target, name)
				}
				if err := writeFileAtomic(target, payload); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), texts.Get("slide.saved", map[string]any{"path": target}))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File or directory to write")
	return cmd
}

func newSlideDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete SLIDE_ID",
		Short: "Delete one slide and its thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slideID := strings.TrimSpace(args[0])
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			return ctx.withStore(func(st *store.Store) error {
				rec, err := st.GetSlide(cmd.Context(), slideID)
				if errors.Is(err, store.ErrSlideNotFound) {
					return errors.New(texts.Get("slide.not_found", map[string]any{"id": slideID}))
				}
				if err != nil {
					return err
				}
				title := rec.Title
				if title == "" {
					title = rec.ID
				}
				if !yes && !confirm(cmd, texts.Get("slide.confirm_delete", map[string]any{"title": title})) {
					return errNotConfirmed
				}
				if err := st.DeleteSlide(cmd.Context(), slideID); err != nil {
					return fmt.Errorf("%s: %w", texts.Get("slide.delete_failed", nil), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), texts.Get("slide.slide_deleted", nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// writeFileAtomic writes data to path through a temporary file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".slide-*.png")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize file: %w", err)
	}
	return nil
}
