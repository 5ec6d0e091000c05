package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slidekeeper/internal/archive"
	"slidekeeper/internal/metacache"
	"slidekeeper/internal/store"
)

func newStreamsCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "streams",
		Short: "List streams with saved slides",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				list := st.ListStreamsWithSlides
				if all {
					list = st.ListStreams
				}
				streams, err := list(cmd.Context())
				if err != nil {
					return fmt.Errorf("list streams: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(streams) == 0 {
					fmt.Fprintln(out, "No streams")
					return nil
				}
				rows := make([][]string, 0, len(streams))
				for _, rec := range streams {
					rows = append(rows, []string{
						string(rec.ID),
						streamTitle(rec),
						rec.Professor,
						strconv.Itoa(rec.SlideCount),
						relativeTime(rec.LastAccessed),
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{left("ID"), left("Title"), left("Professor"), right("Slides"), left("Last Accessed")},
					rows, nil,
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include streams without slides")
	cmd.AddCommand(newStreamSetCommand(ctx))
	return cmd
}

type streamSetOptions struct {
	title     string
	subtitle  string
	professor string
	section   string
	start     string
	end       string
}

func newStreamSetCommand(ctx *commandContext) *cobra.Command {
	var opts streamSetOptions

	cmd := &cobra.Command{
		Use:   "set STREAM",
		Short: "Record a stream's title, professor and schedule",
		Long: `Cache stream information the way the course listing does, so extraction
labels the stream. Only the flags given are changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamArg(args[0])
			if err != nil {
				return err
			}
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			cached, _, err := meta.Stream(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("read cached stream: %w", err)
			}
			cached.ID = id
			if err := opts.apply(cmd, &cached); err != nil {
				return err
			}
			if err := meta.PutStream(cmd.Context(), cached); err != nil {
				return fmt.Errorf("cache stream: %w", err)
			}

			err = ctx.withStore(func(st *store.Store) error {
				if _, err := st.GetStream(cmd.Context(), id); errors.Is(err, store.ErrStreamNotFound) {
					return nil
				} else if err != nil {
					return err
				}
				rec, err := cached.Record()
				if err != nil {
					return err
				}
				_, err = st.UpsertStream(cmd.Context(), rec)
				return err
			})
			if err != nil {
				return fmt.Errorf("update stream: %w", err)
			}
			texts := ctx.localizer(cmd.Context(), meta)
			fmt.Fprintln(cmd.OutOrStdout(), texts.Get("stream.info_saved", map[string]any{"id": string(id)}))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.title, "title", "", "Course title")
	flags.StringVar(&opts.subtitle, "subtitle", "", "Location")
	flags.StringVar(&opts.professor, "professor", "", "Professor name")
	flags.StringVar(&opts.section, "section", "", "Section group")
	flags.StringVar(&opts.start, "start", "", "Scheduled start (RFC 3339 or \"2006-01-02 15:04\")")
	flags.StringVar(&opts.end, "end", "", "Scheduled end (RFC 3339 or \"2006-01-02 15:04\")")
	return cmd
}

func (o streamSetOptions) apply(cmd *cobra.Command, meta *metacache.StreamMeta) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		meta.Title = strings.TrimSpace(o.title)
	}
	if flags.Changed("subtitle") {
		meta.Subtitle = strings.TrimSpace(o.subtitle)
	}
	if flags.Changed("professor") {
		meta.Professor = strings.TrimSpace(o.professor)
	}
	if flags.Changed("section") {
		meta.Section = strings.TrimSpace(o.section)
	}
	if flags.Changed("start") {
		t, err := parseScheduleFlag(o.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		meta.ScheduleStart = t
	}
	if flags.Changed("end") {
		t, err := parseScheduleFlag(o.end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		meta.ScheduleEnd = t
	}
	return nil
}

// parseScheduleFlag accepts RFC 3339 or a local "2006-01-02 15:04" time. An
// empty value clears the field.
func parseScheduleFlag(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", value)
	}
	return t, nil
}

func streamTitle(rec store.StreamRecord) string {
	title := strings.TrimSpace(rec.Title)
	if sub := strings.TrimSpace(rec.Subtitle); sub != "" {
		if title == "" {
			return sub
		}
		return title + " / " + sub
	}
	return title
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func newSlidesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "slides STREAM",
		Short: "List the slides saved for a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				slides, err := st.GetSlidesForStream(cmd.Context(), id, false)
				if err != nil {
					return fmt.Errorf("list slides: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(slides) == 0 {
					fmt.Fprintln(out, "No slides")
					return nil
				}
				var total int64
				rows := make([][]string, 0, len(slides))
				for i, slide := range slides {
					total += slide.Size
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						slide.Title,
						slide.CapturedAt.Local().Format(time.DateTime),
						fmt.Sprintf("%dx%d", slide.Width, slide.Height),
						store.FormatFileSize(slide.Size),
						slide.ID,
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{right("#"), left("Title"), left("Captured"), left("Dimensions"), right("Size"), left("ID")},
					rows,
					[]string{"", fmt.Sprintf("%d slides", len(slides)), "", "", store.FormatFileSize(total), ""},
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export STREAM",
		Short: "Write a stream's slides to a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamArg(args[0])
			if err != nil {
				return err
			}
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			naming := ctx.naming()
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, texts.Get("slide.packing", nil))
				entries, err := archive.Entries(cmd.Context(), st, id, naming)
				if errors.Is(err, archive.ErrNoSlides) {
					return errors.New(texts.Get("slide.error_no_slides", nil))
				}
				if err != nil {
					return fmt.Errorf("%s: %w", texts.Get("slide.error_pack_failed", nil), err)
				}
				target := strings.TrimSpace(output)
				if target == "" {
					target = naming.ZipName(time.Now())
				}
				if err := writeArchiveFile(target, entries); err != nil {
					return fmt.Errorf("%s: %w", texts.Get("slide.error_pack_failed", nil), err)
				}
				fmt.Fprintln(out, texts.Get("slide.download_complete", nil), target)
				fmt.Fprintln(out, texts.Get("slide.slides_captured", map[string]any{"count": len(entries)}))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (defaults to slides_<time>_<zone>.zip)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var slidesOnly bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete STREAM",
		Short: "Delete a stream and its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamArg(args[0])
			if err != nil {
				return err
			}
			meta, err := ctx.metadataCache()
			if err != nil {
				return err
			}
			texts := ctx.localizer(cmd.Context(), meta)
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				count, err := st.CountSlides(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("count slides: %w", err)
				}
				if slidesOnly && count == 0 {
					fmt.Fprintln(out, texts.Get("slide.no_slides_to_clear", nil))
					return nil
				}
				question := texts.Get("slide.confirm_delete_all", map[string]any{"count": count})
				if !yes && !confirm(cmd, question) {
					return errNotConfirmed
				}

				if slidesOnly {
					if _, err := st.DeleteStreamSlides(cmd.Context(), id); err != nil {
						return fmt.Errorf("%s: %w", texts.Get("slide.delete_failed", nil), err)
					}
				} else {
					if err := st.DeleteStream(cmd.Context(), id); err != nil {
						return fmt.Errorf("%s: %w", texts.Get("slide.delete_failed", nil), err)
					}
					if err := meta.Delete(cmd.Context(), metacache.StreamKey(id)); err != nil {
						return fmt.Errorf("remove cached stream metadata: %w", err)
					}
				}
				fmt.Fprintln(out, texts.Get("slide.slides_deleted", nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&slidesOnly, "slides-only", false, "Keep the stream record and session, delete only slides")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
