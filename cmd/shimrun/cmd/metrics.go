package cmd

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var metricsEndpoint string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Scrape and summarize the shim's lifecycle metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(metricsEndpoint)
		if err != nil {
			return fail(fmt.Errorf("scraping %s: %w", metricsEndpoint, err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fail(fmt.Errorf("scraping %s: status %d", metricsEndpoint, resp.StatusCode))
		}

		var parser expfmt.TextParser
		families, err := parser.TextToMetricFamilies(resp.Body)
		if err != nil {
			return fail(fmt.Errorf("parsing metrics: %w", err))
		}

		names := make([]string, 0, len(families))
		for name := range families {
			if strings.HasPrefix(name, "shimrun_") {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Metric", "Labels", "Value")
		for _, name := range names {
			for _, m := range families[name].GetMetric() {
				var labels []string
				for _, l := range m.GetLabel() {
					labels = append(labels, l.GetName()+"="+l.GetValue())
				}
				value := m.GetCounter().GetValue() + m.GetGauge().GetValue()
				table.Append([]string{
					name,
					strings.Join(labels, ","),
					fmt.Sprintf("%.0f", value),
				})
			}
		}
		table.Render()
		return nil
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsEndpoint, "endpoint", "http://127.0.0.1:9921/metrics", "metrics endpoint to scrape")
	rootCmd.AddCommand(metricsCmd)
}
