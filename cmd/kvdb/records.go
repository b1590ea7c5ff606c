package main

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// record is the file-payload envelope stored under a key by put-file and
// recovered by get-file. Grounded on the original Rust implementation's
// records.rs: a small header (here, just the original size) followed by
// the raw file bytes, gob-encoded instead of hand-rolled big-endian
// framing since Go's standard library already gives us that for free.
type record struct {
	Size uint64
	Data []byte
}

func encodeRecord(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	rec := record{Size: uint64(len(data)), Data: data}
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, fmt.Errorf("kvdb: encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*record, error) {
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("kvdb: decode record: %w", err)
	}
	return &rec, nil
}

func newPutFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put-file <key> <path>",
		Short: "Store a file's contents under key, wrapped in a record envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("kvdb: read %s: %w", args[1], err)
			}
			raw, err := encodeRecord(data)
			if err != nil {
				return err
			}
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Insert([]byte(args[0]), raw); err != nil {
				return err
			}
			fmt.Printf("stored %q (%d bytes)\n", args[0], len(data))
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}

func newGetFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-file <key> <out-path>",
		Short: "Recover a record envelope's file contents to out-path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlag(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			raw, found, err := s.Search([]byte(args[0]))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("kvdb: key %q not found", args[0])
			}
			rec, err := decodeRecord(raw)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], rec.Data, 0644); err != nil {
				return fmt.Errorf("kvdb: write %s: %w", args[1], err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", args[1], rec.Size)
			return nil
		},
	}
	addDBFlag(cmd)
	return cmd
}
