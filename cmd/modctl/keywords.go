package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fabble/moderation/internal/app"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/validator"
	"github.com/fabble/moderation/internal/repository"
	"github.com/spf13/cobra"
)

var keywordCmd = &cobra.Command{
	Use:   "keyword",
	Short: "Manage spam keywords",
}

var keywordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spam keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			opts := repository.NewListOptions().WithOrderBy("created_at DESC")
			opts.Pagination = nil

			keywords, err := a.Repos.SpamKeyword().List(ctx, opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEYWORD\tENABLED")
			for _, k := range keywords {
				fmt.Fprintf(w, "%d\t%s\t%t\n", k.ID, k.Keyword, k.Enabled)
			}
			return w.Flush()
		})
	},
}

var keywordAddCmd = &cobra.Command{
	Use:   "add <keyword>",
	Short: "Add an enabled spam keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			keyword := &model.SpamKeyword{Keyword: args[0], Enabled: true}
			keyword.Normalize()
			if err := validator.Validate(keyword); err != nil {
				return fmt.Errorf("invalid keyword: %v", validator.ValidationErrors(err))
			}

			repo := a.Repos.SpamKeyword()
			exists, err := repo.ExistsByKeyword(ctx, keyword.Keyword, nil)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("keyword %q already exists", keyword.Keyword)
			}
			if err := repo.Create(ctx, keyword); err != nil {
				return err
			}
			if err := a.Matcher.InvalidateCache(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %d %q\n", keyword.ID, keyword.Keyword)
			return nil
		})
	},
}

var keywordToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a spam keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid keyword id %q", args[0])
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			repo := a.Repos.SpamKeyword()
			keyword, err := repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			keyword.Enabled = !keyword.Enabled
			if err := repo.Update(ctx, keyword); err != nil {
				return err
			}
			if err := a.Matcher.InvalidateCache(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%q enabled=%t\n", keyword.Keyword, keyword.Enabled)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(keywordCmd)
	keywordCmd.AddCommand(keywordListCmd, keywordAddCmd, keywordToggleCmd)
}
