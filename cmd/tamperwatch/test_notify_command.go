package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tamperwatch/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to request_link",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			notifier := notifications.NewService(cfg, ctx.cliLogger(cfg))
			out := cmd.OutOrStdout()
			if notifications.IsNoop(notifier) {
				fmt.Fprintln(out, "request_link not configured; notification not sent")
				return nil
			}
			if err := notifier.TestNotification(cmd.Context()); err != nil {
				fmt.Fprintln(out, "failed to send notification")
				return err
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
