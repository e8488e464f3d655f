// Command cfgdbctl is a minimal inspector for a transaction-log
// directory: it opens the log and prints the last N records to
// stdout. No flag-parsing library is used — argument handling is
// deliberately thin, matching the engine's own stance that
// command-line tooling is outside the core contract.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cfgdb/engine/translog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cfgdbctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: cfgdbctl <log-dir> [n]")
	}

	dir := args[0]
	n := 10
	if len(args) >= 2 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("parse n: %w", err)
		}
		n = parsed
	}

	log, err := translog.Create(dir)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Close()

	if _, err := log.Recover(); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	records, err := log.ReadAllFromEnd(n)
	if err != nil {
		return fmt.Errorf("read tail: %w", err)
	}

	for i, r := range records {
		fmt.Printf("%d\top=%s\tts=%d\tkey=%x\tval=%x\n", i, r.Operation, r.Timestamp, r.Key, r.Value)
	}
	return nil
}
