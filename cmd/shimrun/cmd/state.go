package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shimrun/shimrun/internal/state"
)

var stateBundle string

var stateCmd = &cobra.Command{
	Use:   "state <id>",
	Short: "Show an instance's persisted lifecycle record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := instanceRoot(stateBundle)
		if err != nil {
			return fail(err)
		}

		rec, err := state.Load(root, args[0])
		if err != nil {
			return fail(err)
		}
		if err := renderRecords([]*state.Record{rec}); err != nil {
			return fail(err)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances under the state root",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := state.List(resolvedRoot())
		if err != nil {
			return fail(err)
		}
		if err := renderRecords(records); err != nil {
			return fail(err)
		}
		return nil
	},
}

func renderRecords(records []*state.Record) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(records)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Status", "PID", "Bundle", "Created")
		for _, r := range records {
			pid := "-"
			if r.Pid != 0 {
				pid = strconv.Itoa(r.Pid)
			}
			table.Append([]string{
				r.ID,
				string(r.Status),
				pid,
				r.Bundle,
				r.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		if len(records) == 0 {
			fmt.Println("No instances found")
		}
		return nil
	}
}

func init() {
	stateCmd.Flags().StringVar(&stateBundle, "bundle", "", "path to the workload bundle (optional when --root is set)")

	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(listCmd)
}
