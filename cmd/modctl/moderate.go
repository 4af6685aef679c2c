package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fabble/moderation/internal/app"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/spf13/cobra"
)

var (
	spamBatchKind   string
	spamBatchBefore string
)

var spamBatchCmd = &cobra.Command{
	Use:   "spam-batch",
	Short: "Mark every unconfirmed comment created at or before --before as spam",
	Example: `  modctl spam-batch --kind project_comment --before 2026-01-31T00:00:00+09:00
  modctl spam-batch --kind card_comment --before "2026-01-31 00:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			var moderator *moderation.CommentModerator
			switch model.CommentKind(spamBatchKind) {
			case model.CommentKindCard:
				moderator = a.CardComments
			case model.CommentKindProject:
				moderator = a.ProjComments
			default:
				return fmt.Errorf("unknown comment kind %q", spamBatchKind)
			}

			cutoff, err := parseCutoff(spamBatchBefore, a.Location())
			if err != nil {
				return err
			}

			count, err := moderator.SpamBatch(ctx, cutoff)
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d %s(s) as spam\n", count, spamBatchKind)
			return err
		})
	},
}

var designateCmd = &cobra.Command{
	Use:   "designate <project-id>...",
	Short: "Designate projects as spam: flag every owner member and soft-delete the project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", arg)
			}
			ids = append(ids, id)
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			projects, err := a.Repos.Project().GetByIDs(ctx, ids)
			if err != nil {
				return err
			}

			result := a.Designation.Call(ctx, projects)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "succeeded: %d\n", result.SuccessCount)
			failed := result.FailedIDs()
			sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
			for _, id := range failed {
				fmt.Fprintf(out, "failed:    %d (%s)\n", id, result.Errors[id])
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d project(s) failed", len(failed))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(spamBatchCmd, designateCmd)

	spamBatchCmd.Flags().StringVar(&spamBatchKind, "kind", string(model.CommentKindProject), "comment kind (card_comment, project_comment)")
	spamBatchCmd.Flags().StringVar(&spamBatchBefore, "before", "", "cutoff time (RFC3339 or YYYY-MM-DD HH:MM in the configured timezone)")
	_ = spamBatchCmd.MarkFlagRequired("before")
}

func parseCutoff(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --before %q", raw)
}
