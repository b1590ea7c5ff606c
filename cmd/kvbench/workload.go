package main

import (
	"fmt"
	"math/rand"
)

// engine is the minimal surface both the kvdb B-tree and Pebble expose,
// letting ExecuteWorkload drive either one identically.
type engine interface {
	Insert(key, value []byte) error
	Search(key []byte) ([]byte, bool, error)
	Delete(key []byte) error
}

func benchKey(i int) []byte { return []byte(fmt.Sprintf("key-%08d", i)) }
func benchVal(i int) []byte { return []byte(fmt.Sprintf("val-%08d", i)) }

// WorkloadType names a read/write mix. Range scans are not part of
// either mix: this store has no range-query operation to exercise.
type WorkloadType string

const (
	OLTP WorkloadType = "OLTP (90/10)"
	OLAP WorkloadType = "OLAP (10/90)"
)

// ExecuteWorkload issues one operation of the given mix against e, keyed
// into [0, universe).
func ExecuteWorkload(e engine, wType WorkloadType, i, universe int) {
	choice := rand.Intn(100)
	key := benchKey(rand.Intn(universe))

	readHeavy := wType == OLTP
	threshold := 90
	if !readHeavy {
		threshold = 10
	}

	if choice < threshold {
		_, _, _ = e.Search(key)
	} else {
		_ = e.Insert(key, benchVal(i))
	}
}
