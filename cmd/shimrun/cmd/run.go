package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shimrun/shimrun/internal/cgroups"
)

var (
	runBundle    string
	runID        string
	runStdin     string
	runStdout    string
	runStderr    string
	runCPUMax    string
	runCPUWeight int
	runMemoryMax int64
)

// workloadLimits returns the cgroup caps requested on the command line,
// or nil when none were set.
func workloadLimits() *cgroups.Limits {
	if runCPUMax == "" && runCPUWeight == 0 && runMemoryMax == 0 {
		return nil
	}
	return &cgroups.Limits{
		CPUMax:    runCPUMax,
		CPUWeight: runCPUWeight,
		MemoryMax: runMemoryMax,
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create and start an instance, then wait for it to exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := runID
		if id == "" {
			id = uuid.New().String()
		}

		inst, err := newInstance(id, runBundle, runStdin, runStdout, runStderr)
		if err != nil {
			return fail(err)
		}

		pid, err := inst.Start()
		if err != nil {
			return fail(err)
		}
		fmt.Printf("instance %s started, pid %d\n", id, pid)

		st := inst.Exit().Wait()
		fmt.Printf("instance %s exited with code %d at %s\n",
			id, st.Code, st.ExitedAt.Format("2006-01-02 15:04:05 MST"))

		os.Exit(int(st.Code))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBundle, "bundle", "", "path to the workload bundle (required)")
	runCmd.Flags().StringVar(&runID, "id", "", "instance id (generated when omitted)")
	runCmd.Flags().StringVar(&runStdin, "stdin", "", "redirect workload stdin from this file")
	runCmd.Flags().StringVar(&runStdout, "stdout", "", "redirect workload stdout to this file")
	runCmd.Flags().StringVar(&runStderr, "stderr", "", "redirect workload stderr to this file")
	runCmd.Flags().StringVar(&runCPUMax, "cpu-max", "", "cgroup v2 cpu.max value, e.g. \"50000 100000\"")
	runCmd.Flags().IntVar(&runCPUWeight, "cpu-weight", 0, "relative cpu weight, 1-10000")
	runCmd.Flags().Int64Var(&runMemoryMax, "memory-max", 0, "memory cap in bytes")
	runCmd.MarkFlagRequired("bundle")

	rootCmd.AddCommand(runCmd)
}
