package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opengov-in/mgnrega-dashboard/internal/export"
	"github.com/opengov-in/mgnrega-dashboard/internal/mgnrega"
)

var fetchFlags struct {
	state    string
	district string
	finYear  string
	month    string
	all      bool
	output   string
	outFile  string
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch employment records once and print or export them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var res *mgnrega.Result
		switch {
		case fetchFlags.month != "":
			res, err = e.Service.Monthly(ctx, mgnrega.MonthlyParams{
				State:    fetchFlags.state,
				District: fetchFlags.district,
				Month:    fetchFlags.month,
				FinYear:  fetchFlags.finYear,
			})
		case fetchFlags.all:
			res, err = e.Service.QueryAll(ctx, fetchParams())
		default:
			res, err = e.Service.Query(ctx, fetchParams())
		}
		if err != nil {
			return err
		}

		if res.Meta != nil && res.Meta.Used {
			zap.L().Info("served via fallback",
				zap.String("month", res.Meta.Month),
				zap.String("finYear", res.Meta.FinYear),
			)
		}

		out, closeOut, err := openOutput()
		if err != nil {
			return err
		}
		defer closeOut()

		switch fetchFlags.output {
		case "csv":
			return export.WriteCSV(out, res.Records)
		case "xlsx":
			return export.WriteXLSX(out, "", res.Records)
		case "table", "":
			formatRecords(out, res)
			return nil
		default:
			return fmt.Errorf("unknown output format %q", fetchFlags.output)
		}
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFlags.state, "state", "", "state name (default from config)")
	fetchCmd.Flags().StringVar(&fetchFlags.district, "district", "", "district name")
	fetchCmd.Flags().StringVar(&fetchFlags.finYear, "fin-year", "", `fiscal year, e.g. "2025-2026"`)
	fetchCmd.Flags().StringVar(&fetchFlags.month, "month", "", `reporting month, e.g. "Oct" (walks back when empty upstream)`)
	fetchCmd.Flags().BoolVar(&fetchFlags.all, "all", false, "fetch every page, not just the first")
	fetchCmd.Flags().StringVar(&fetchFlags.output, "output", "table", "output format: table, csv or xlsx")
	fetchCmd.Flags().StringVar(&fetchFlags.outFile, "out", "", "write to file instead of stdout")
	rootCmd.AddCommand(fetchCmd)
}

func fetchParams() mgnrega.Params {
	return mgnrega.Params{
		State:    fetchFlags.state,
		District: fetchFlags.district,
		FinYear:  fetchFlags.finYear,
	}
}

func openOutput() (io.Writer, func(), error) {
	if fetchFlags.outFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(fetchFlags.outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// formatRecords writes a tabular summary. Numbers use Indian digit grouping
// (12,34,567) since that is what the dashboard's audience reads.
func formatRecords(out io.Writer, res *mgnrega.Result) {
	p := message.NewPrinter(language.MustParse("en-IN"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DISTRICT\tMONTH\tFIN_YEAR\tEXPENDITURE (LAKH)\tHOUSEHOLDS\tINDIVIDUALS")
	_, _ = fmt.Fprintln(w, "--------\t-----\t--------\t------------------\t----------\t-----------")

	for _, r := range res.Records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.String(mgnrega.FieldDistrict),
			r.String(mgnrega.FieldMonth),
			r.String(mgnrega.FieldFinYear),
			p.Sprintf("%.2f", r.Number(mgnrega.FieldTotalExp)),
			p.Sprintf("%.0f", r.Number(mgnrega.FieldHouseholdsWorked)),
			p.Sprintf("%.0f", r.Number(mgnrega.FieldIndividualsWorked)),
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d records (source: %s", res.Count, res.Source)
	if res.Source == mgnrega.SourceCacheStale {
		_, _ = fmt.Fprint(out, ", upstream unavailable")
	}
	_, _ = fmt.Fprintln(out, ")")
}
