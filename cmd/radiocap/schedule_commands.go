package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"radiocap/internal/api"
	"radiocap/internal/ipc"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and rebuild the capture schedule",
	}
	scheduleCmd.AddCommand(newSchedulePendingCommand(ctx))
	scheduleCmd.AddCommand(newScheduleRefreshCommand(ctx))
	return scheduleCmd
}

func newSchedulePendingCommand(ctx *commandContext) *cobra.Command {
	var show string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "pending",
		Aliases: []string{"list", "ls"},
		Short:   "List upcoming capture triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pending(show)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.TriggerListResponse{Triggers: resp.Triggers})
				}
				out := cmd.OutOrStdout()
				if len(resp.Triggers) == 0 {
					fmt.Fprintln(out, "No captures scheduled")
					return nil
				}
				rows := make([][]string, 0, len(resp.Triggers))
				for _, trig := range resp.Triggers {
					rows = append(rows, []string{
						formatWhen(trig.At),
						strconv.FormatInt(trig.ShowID, 10),
						strconv.FormatInt(trig.StationID, 10),
						trig.AiringType,
						strconv.Itoa(trig.Priority),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"When", "Show", "Station", "Airing", "Priority"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Only list triggers for this show (id or key)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output triggers as JSON")
	return cmd
}

func newScheduleRefreshCommand(ctx *commandContext) *cobra.Command {
	var show string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-resolve airing patterns into triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var (
					resp *ipc.RefreshResponse
					err  error
				)
				if show != "" {
					resp, err = client.RefreshShow(show)
				} else {
					resp, err = client.RefreshAll()
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Refreshed %d show(s), %d trigger(s) pending\n", resp.Shows, resp.Triggers)
				for _, msg := range resp.Errors {
					fmt.Fprintf(out, "  warning: %s\n", msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Refresh a single show (id or key)")
	return cmd
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "trigger <show>",
		Short: "Start capturing a show now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration < 0 {
				return fmt.Errorf("invalid duration %s", duration)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger(ipc.TriggerRequest{
					Show:            args[0],
					DurationSeconds: int(duration / time.Second),
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch resp.Outcome {
				case "started":
					fmt.Fprintf(out, "Capture started for show %d with %s\n", resp.ShowID, orDash(resp.Tool))
				case "queued":
					fmt.Fprintf(out, "Capture for show %d queued; waiting for a free slot\n", resp.ShowID)
				case "already_running":
					fmt.Fprintf(out, "Show %d is already being captured\n", resp.ShowID)
				default:
					fmt.Fprintf(out, "Capture for show %d: %s\n", resp.ShowID, resp.Outcome)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Capture length (default: the show's duration)")
	return cmd
}
