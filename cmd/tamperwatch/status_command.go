package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tamperwatch/internal/daemon"
	"tamperwatch/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var apiFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			bind := strings.TrimSpace(apiFlag)
			if bind == "" {
				bind = cfg.Paths.APIBind
			}
			if strings.TrimSpace(bind) == "" {
				return fmt.Errorf("status API disabled (paths.api_bind is empty)")
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			status, err := fetchStatus(cmd.Context(), bind, cfg.Paths.APIToken)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not reachable", colorize))
				return err
			}
			writeStatus(out, status, colorize)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiFlag, "api", "", "Daemon API address (defaults to paths.api_bind)")
	return cmd
}

func fetchStatus(ctx context.Context, bind, token string) (daemon.Status, error) {
	var status daemon.Status
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+dialAddress(bind)+"/api/status", nil)
	if err != nil {
		return status, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return status, fmt.Errorf("daemon status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// dialAddress maps wildcard listen addresses to loopback.
func dialAddress(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func writeStatus(out io.Writer, status daemon.Status, colorize bool) {
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Stopped", colorize))
	}

	summary := status.Workflow
	passMessage := fmt.Sprintf("%d completed", summary.Passes)
	if summary.LastPass != nil {
		passMessage += fmt.Sprintf(", last %s at %s", summary.LastPass.PassID, summary.LastPass.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(out, renderStatusLine("Passes", statusInfo, passMessage, colorize))
	if summary.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, summary.LastError, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Feed subscribers", statusInfo, fmt.Sprintf("%d", status.FeedClients), colorize))

	results := make(map[string]workflow.CameraResult)
	if summary.LastPass != nil {
		for _, result := range summary.LastPass.Cameras {
			results[result.CameraID] = result
		}
	}
	for _, cameraID := range summary.Cameras {
		result, ok := results[cameraID]
		if !ok {
			fmt.Fprintln(out, renderStatusLine(cameraID, statusInfo, "Not inspected yet", colorize))
			continue
		}
		kind, message := cameraStatus(result)
		fmt.Fprintln(out, renderStatusLine(cameraID, kind, message, colorize))
	}
}

func cameraStatus(result workflow.CameraResult) (statusKind, string) {
	switch result.Outcome {
	case workflow.OutcomeTampered:
		return statusError, fmt.Sprintf("Tampered (distance %s)", formatDistance(result.Decision.Distance, result.Decision.Inferred))
	case workflow.OutcomeClear:
		return statusOK, "Clear"
	case workflow.OutcomeIdle:
		return statusInfo, "No new image"
	default:
		return statusWarn, fmt.Sprintf("%s: %s", strings.ToUpper(string(result.Outcome[:1]))+string(result.Outcome[1:]), result.Error)
	}
}
