package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kvdb"
)

// addDBFlag adds the --db and --cache-pages flags shared by every
// subcommand that opens a store.
func addDBFlag(cmd *cobra.Command) *string {
	path := cmd.Flags().StringP("db", "d", "data.kvdb", "path to the .kvdb file")
	cmd.Flags().IntP("cache-pages", "c", kvdb.DefaultCachePages, "number of pages to keep in the pager's LRU cache")
	return path
}

// openFromFlag opens the store named by cmd's --db and --cache-pages
// flags.
func openFromFlag(cmd *cobra.Command) (*kvdb.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	cachePages, _ := cmd.Flags().GetInt("cache-pages")
	return kvdb.Open(dbPath, cachePages)
}

func newInsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Insert or overwrite a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Insert([]byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Printf("inserted %q\n", args[0])
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Look up a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			v, found, err := s.Search([]byte(args[0]))
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("%q: not found\n", args[0])
				return nil
			}
			fmt.Printf("%s\n", v)
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Delete([]byte(args[0])); err != nil {
				return err
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate tree invariants and report key count and height",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := s.Validate()
			if err != nil {
				return fmt.Errorf("invariant check failed: %w", err)
			}
			fmt.Printf("keys=%d height=%d pages=%d\n", report.KeyCount, report.Height, s.AllocatedPages())
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}
