package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radiocap/internal/api"
	"radiocap/internal/ipc"
)

func newStationCommand(ctx *commandContext) *cobra.Command {
	stationCmd := &cobra.Command{
		Use:     "station",
		Aliases: []string{"stations"},
		Short:   "Inspect stations and test their streams",
	}
	stationCmd.AddCommand(newStationListCommand(ctx))
	stationCmd.AddCommand(newStationTestCommand(ctx))
	return stationCmd
}

func newStationListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stations with their recommended capture tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stations()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.StationListResponse{Stations: resp.Stations})
				}
				out := cmd.OutOrStdout()
				if len(resp.Stations) == 0 {
					fmt.Fprintln(out, "No stations configured; import a catalog with `radiocap catalog import`")
					return nil
				}
				rows := make([][]string, 0, len(resp.Stations))
				for _, st := range resp.Stations {
					rows = append(rows, []string{
						strconv.FormatInt(st.ID, 10),
						st.CallSign,
						st.Compatibility,
						orDash(st.RecommendedTool),
						formatWhen(st.LastTestedAt),
						st.StreamURL,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Call Sign", "Compatibility", "Tool", "Tested", "Stream"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output stations as JSON")
	return cmd
}

func newStationTestCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "test <station>",
		Short: "Probe a station stream with every capture tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				report, err := client.TestStation(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(report.Results))
				for _, res := range report.Results {
					rows = append(rows, []string{
						res.Tool,
						res.Outcome,
						formatBytes(res.Bytes),
						fmt.Sprintf("%.1fs", float64(res.ElapsedMS)/1000),
						orDash(res.Detail),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Tool", "Outcome", "Bytes", "Elapsed", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				fmt.Fprintf(out, "%s: %s (recommended: %s)\n", report.CallSign, report.Status, orDash(report.Recommended))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}
