// Command kvdb is a CLI and REPL that drive a kvdb.Store through its
// public operations only, plus a gob-encoded file-payload envelope for
// put-file/get-file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kvdb",
		Short: "kvdb drives a disk-resident B-tree key-value store",
	}
	root.AddCommand(
		newInsertCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newPutFileCmd(),
		newGetFileCmd(),
		newInspectCmd(),
		newReplCmd(),
	)
	return root
}
