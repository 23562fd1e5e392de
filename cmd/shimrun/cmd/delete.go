package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteBundle string

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Tear down an instance's persisted record",
	Long: `Delete removes the instance's on-disk record. It is idempotent:
deleting an unknown instance is success, and cleanup always makes progress
even when the record is damaged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := instanceRoot(deleteBundle)
		if err != nil {
			return fail(err)
		}
		inst, err := newRootedInstance(args[0], deleteBundle, root)
		if err != nil {
			return fail(err)
		}

		inst.Delete()
		fmt.Printf("instance %s deleted\n", args[0])
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteBundle, "bundle", "", "path to the workload bundle (optional when --root is set)")

	rootCmd.AddCommand(deleteCmd)
}
