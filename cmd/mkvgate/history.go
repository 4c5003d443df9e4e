package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"example.com/mkvgate/internal/common"
)

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [<history.jsonl>]",
		Short: "List the runs recorded in a history file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.run.history
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return &ExitError{Code: exitUsage, Err: fmt.Errorf("no history file given")}
			}
			entries, err := common.ReadHistory(path)
			if err != nil {
				return &ExitError{Code: exitFatal, Err: err}
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRESULT\tERRORS\tWARNINGS\tPROFILE\tFILE")
			for _, e := range entries {
				result := "valid"
				switch {
				case e.Fatal:
					result = "fatal"
				case !e.Valid:
					result = "invalid"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", e.Ts.Local().Format(time.DateTime), result, e.Errors, e.Warnings, e.Profile, e.File)
			}
			return tw.Flush()
		},
	}
}
