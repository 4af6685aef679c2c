package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/app"
	"github.com/spf13/cobra"
)

var readonlyCmd = &cobra.Command{
	Use:   "readonly",
	Short: "Show or change site-wide readonly mode",
}

var readonlyFor time.Duration

var readonlyOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable readonly mode, optionally expiring after --for",
	Example: `  modctl readonly on
  modctl readonly on --for 2h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			var expiresAt *time.Time
			if readonlyFor > 0 {
				t := time.Now().Add(readonlyFor)
				expiresAt = &t
			}
			if err := a.Settings.EnableReadonly(ctx, expiresAt); err != nil {
				return err
			}
			return printReadonly(ctx, cmd, a)
		})
	},
}

var readonlyOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable readonly mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Settings.DisableReadonly(ctx); err != nil {
				return err
			}
			return printReadonly(ctx, cmd, a)
		})
	},
}

var readonlyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print readonly mode state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return printReadonly(ctx, cmd, a)
		})
	},
}

func init() {
	rootCmd.AddCommand(readonlyCmd)
	readonlyCmd.AddCommand(readonlyOnCmd, readonlyOffCmd, readonlyStatusCmd)

	readonlyOnCmd.Flags().DurationVar(&readonlyFor, "for", 0, "expire after this duration (0 = until disabled)")
}

func printReadonly(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	// 经过到期检查的实际状态
	enabled, err := a.Settings.ReadonlyEnabled(ctx)
	if err != nil {
		return err
	}
	expiresAt, err := a.Settings.ReadonlyExpiresAt(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "readonly: %t\n", enabled)
	if enabled && expiresAt != nil {
		fmt.Fprintf(out, "expires:  %s\n", expiresAt.In(a.Location()).Format(time.RFC3339))
	}
	return nil
}
