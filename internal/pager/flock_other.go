//go:build !unix

package pager

import "os"

// lockExclusive is a no-op on platforms without flock semantics; the store
// still assumes a single writer, it just can't detect a second one here.
func lockExclusive(f *os.File) error { return nil }

func unlock(f *os.File) {}
