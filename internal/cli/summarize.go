package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/clientbench/internal/summary"
)

func newSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize DIR",
		Short: "Summarize the sample files of a result directory",
		Long: fmt.Sprintf(`Read every *%s sample file in DIR, rewrite DIR/%s and print
the per-query count, total, mean and percentiles.`, summary.SampleExt, summary.FileName),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.summarize(args[0])
		},
	}
}

func (a *app) summarize(dir string) error {
	stats, err := summary.WriteDir(dir)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"query", "count", "total", "mean", "p50", "p99", "max"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, st := range stats {
		table.Append([]string{
			st.Name,
			strconv.FormatInt(st.Count, 10),
			round(st.Total),
			round(st.Mean),
			round(st.P50),
			round(st.P99),
			round(st.Max),
		})
	}
	table.Render()
	return nil
}

func round(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
