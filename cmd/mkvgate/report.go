package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/mkvgate/internal/report"
)

func (a *app) reportCmd() *cobra.Command {
	var accPath, pdfPath string
	cmd := &cobra.Command{
		Use:   "report --acceptance <acceptance.json> --pdf <out.pdf>",
		Short: "Render a saved acceptance summary as PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.LoadAcceptanceJSON(accPath)
			if err != nil {
				return &ExitError{Code: exitFatal, Err: fmt.Errorf("load acceptance: %w", err)}
			}
			if err := report.SaveAcceptancePDF(rep, pdfPath); err != nil {
				return &ExitError{Code: exitFatal, Err: fmt.Errorf("write pdf: %w", err)}
			}
			fmt.Fprintln(a.stdout, "Wrote PDF:", pdfPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&accPath, "acceptance", "", "acceptance summary JSON")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "output PDF")
	cmd.MarkFlagRequired("acceptance")
	cmd.MarkFlagRequired("pdf")
	return cmd
}
