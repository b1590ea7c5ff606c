package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kvdb"
)

// newReplCmd opens one store and accepts a line at a time, avoiding the
// reopen-per-command cost the other subcommands pay. Commands: insert,
// get, delete, inspect, quit.
func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive session against one open store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return runRepl(s, os.Stdin, os.Stdout)
		},
	}
	addDBFlag(cmd)
	return cmd
}

func runRepl(s *kvdb.Store, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "kvdb repl — insert/get/delete/inspect/quit")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "insert":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: insert <key> <value>")
				continue
			}
			if err := s.Insert([]byte(fields[1]), []byte(fields[2])); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "ok")
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: get <key>")
				continue
			}
			v, found, err := s.Search([]byte(fields[1]))
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			if !found {
				fmt.Fprintln(out, "not found")
				continue
			}
			fmt.Fprintln(out, string(v))
		case "delete":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: delete <key>")
				continue
			}
			if err := s.Delete([]byte(fields[1])); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "ok")
		case "inspect":
			report, err := s.Validate()
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintf(out, "keys=%d height=%d pages=%d\n", report.KeyCount, report.Height, s.AllocatedPages())
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}
