package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	killBundle string
	killSignal string
)

var killCmd = &cobra.Command{
	Use:   "kill <id>",
	Short: "Signal an instance's init process and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := parseSignal(killSignal)
		if err != nil {
			return fail(err)
		}

		root, err := instanceRoot(killBundle)
		if err != nil {
			return fail(err)
		}
		inst, err := newRootedInstance(args[0], killBundle, root)
		if err != nil {
			return fail(err)
		}
		if err := inst.Kill(sig); err != nil {
			return fail(err)
		}

		fmt.Printf("sent %s to instance %s\n", unix.SignalName(sig), args[0])
		return nil
	},
}

// parseSignal maps a signal name to its number. Which signals the shim
// accepts is decided by the instance controller, not here.
func parseSignal(name string) (unix.Signal, error) {
	s := strings.ToUpper(strings.TrimPrefix(strings.ToUpper(name), "SIG"))
	switch s {
	case "KILL":
		return unix.SIGKILL, nil
	case "INT":
		return unix.SIGINT, nil
	case "TERM":
		return unix.SIGTERM, nil
	case "HUP":
		return unix.SIGHUP, nil
	case "QUIT":
		return unix.SIGQUIT, nil
	default:
		return 0, fmt.Errorf("unknown signal %q", name)
	}
}

func init() {
	killCmd.Flags().StringVar(&killBundle, "bundle", "", "path to the workload bundle (optional when --root is set)")
	killCmd.Flags().StringVar(&killSignal, "signal", "KILL", "signal to send (KILL or INT)")

	rootCmd.AddCommand(killCmd)
}
