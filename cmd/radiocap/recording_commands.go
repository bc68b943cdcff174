package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radiocap/internal/api"
	"radiocap/internal/ipc"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"recording"},
		Short:   "List and expire recordings",
	}
	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsReapCommand(ctx))
	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var show string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("invalid limit %d", limit)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Recordings(ipc.RecordingsRequest{Show: show, Limit: limit})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.RecordingListResponse{Recordings: resp.Recordings})
				}
				out := cmd.OutOrStdout()
				if len(resp.Recordings) == 0 {
					fmt.Fprintln(out, "No recordings")
					return nil
				}
				rows := make([][]string, 0, len(resp.Recordings))
				for _, rec := range resp.Recordings {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						formatWhen(rec.RecordedAt),
						rec.Filename,
						formatBytes(rec.SizeBytes),
						formatSeconds(rec.DurationSeconds),
						orDash(rec.Tool),
						yesNo(rec.Partial),
						formatWhen(rec.ExpiresAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Recorded", "File", "Size", "Duration", "Tool", "Partial", "Expires"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Only list recordings of this show (id or key)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output recordings as JSON")
	return cmd
}

func newRecordingsReapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete recordings past their retention now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reap()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d expired, removed %d (%d already missing, %d failed)\n",
					resp.Scanned, resp.Removed, resp.Missing, resp.Failed)
				return nil
			})
		},
	}
}
