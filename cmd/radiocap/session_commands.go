package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radiocap/internal/api"
	"radiocap/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and stop live captures",
	}
	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsStopCommand(ctx))
	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List captures in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sessions()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SessionListResponse{Sessions: resp.Sessions})
				}
				out := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(out, "No captures in progress")
					return nil
				}
				rows := make([][]string, 0, len(resp.Sessions))
				for _, s := range resp.Sessions {
					rows = append(rows, []string{
						s.ShowKey,
						s.CallSign,
						s.State,
						orDash(s.Tool),
						strconv.Itoa(s.Attempt),
						fmt.Sprintf("%.0f%%", s.Percent),
						formatSeconds(s.RemainingSeconds),
						formatBytes(s.Bytes),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Show", "Station", "State", "Tool", "Attempt", "Progress", "Remaining", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output sessions as JSON")
	return cmd
}

func newSessionsStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <show>",
		Short: "Stop the capture for a show, keeping what was recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopSession(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for show %d\n", resp.ShowID)
				return nil
			})
		},
	}
}
