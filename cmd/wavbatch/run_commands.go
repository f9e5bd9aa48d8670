package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"wavbatch/internal/batchrun"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/layout"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dateFlag string
	var skipMail bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, convert, promote, and report one daily batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := ctx.batchOptions(cmd)
			opts.SkipMail = skipMail
			if value := strings.TrimSpace(dateFlag); value != "" {
				date, ok := layout.ParseBatch(value)
				if !ok {
					return fmt.Errorf("invalid --date %q: expected yymmdd", value)
				}
				opts.Date = date
			}

			out, err := batchrun.Run(cmd.Context(), cfg, opts)
			if errors.Is(err, fetcher.ErrNothingToDo) {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to do for batch %s\n", out.Batch)
				return err
			}
			if err != nil {
				return err
			}
			printRunOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Batch date to fetch as yymmdd (default today)")
	cmd.Flags().BoolVar(&skipMail, "skip-mail", false, "Write the report but do not send the status mail")
	return cmd
}

func printRunOutcome(w io.Writer, out batchrun.Outcome) {
	fmt.Fprintf(w, "Batch %s (run %s)\n", out.Batch, out.RunID)
	rows := [][]string{
		{"Fetched", fmt.Sprint(len(out.Fetch.Fetched))},
		{"Converted", fmt.Sprint(len(out.Conversion.Completed))},
		{"Failed", fmt.Sprint(len(out.Conversion.Failed))},
		{"Left pending", fmt.Sprint(len(out.Conversion.Deferred))},
		{"Missing artifacts", fmt.Sprint(len(out.Conversion.Incomplete))},
		{"Status not recorded", fmt.Sprint(len(out.Conversion.Unrecorded))},
		{"Promoted files", fmt.Sprint(len(out.Promote.Moved))},
		{"Published", fmt.Sprint(out.Published.Uploaded)},
	}
	fmt.Fprintln(w, renderTable(w, []string{"Step", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	printDelivery(w, out.Report)
	fmt.Fprintf(w, "Run log: %s\n", out.LogPath)
}

func printDelivery(w io.Writer, d batchrun.Delivery) {
	fmt.Fprintf(w, "Report: %s\n", d.Spreadsheet)
	fmt.Fprintf(w, "Mail sent: %s\n", yesNo(d.MailSent))
	if d.MailErr != nil {
		fmt.Fprintf(w, "Mail error: %v\n", d.MailErr)
	}
	if n := len(d.Summary.Drifted); n > 0 {
		fmt.Fprintf(w, "Ledger drift: %d recording(s) reported from the filesystem\n", n)
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Move completed batches past retention into the deleted area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out, err := batchrun.Sweep(cmd.Context(), cfg, ctx.batchOptions(cmd))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(out.Batches) == 0 {
				fmt.Fprintln(w, "No batches past retention")
				return nil
			}
			rows := make([][]string, 0, len(out.Batches))
			for _, batch := range out.Batches {
				rows = append(rows, []string{batch.Name, fmt.Sprint(len(batch.Originals))})
			}
			fmt.Fprintln(w, renderTable(w, []string{"Batch", "Recordings"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(w, "Marked %d recording(s) deleted\n", out.Marked)
			return nil
		},
	}
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var skipMail bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconcile the ledger, rewrite the spreadsheet, and send the status mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := ctx.batchOptions(cmd)
			opts.SkipMail = skipMail
			d, err := batchrun.Report(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			counts := d.Summary.Counts
			rows := [][]string{
				{"Total", fmt.Sprint(counts.Total())},
				{"Processed", fmt.Sprint(counts.Completed)},
				{"Failed", fmt.Sprint(counts.Failed)},
				{"Deleted", fmt.Sprint(counts.Deleted)},
				{"Pending", fmt.Sprint(counts.Pending)},
			}
			fmt.Fprintln(w, renderTable(w, []string{"Status", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))
			printDelivery(w, d)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipMail, "skip-mail", false, "Write the report but do not send the status mail")
	return cmd
}
