package main

import (
	"errors"
	"fmt"
)

type usageError struct {
	error
}

func newUsageError(msg string) *usageError {
	return &usageError{error: errors.New(msg)}
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
var errorInvalidOutputFormat = newUsageError("invalid output format specified")

func wantArgs(args []string, names ...string) error {
	if len(args) != len(names) {
		return newUsageError(fmt.Sprintf("expected %d argument(s): %v", len(names), names))
	}
	return nil
}

// wantArgsBetween is for commands with trailing optional arguments.
func wantArgsBetween(args []string, min int, names ...string) error {
	if len(args) < min || len(args) > len(names) {
		return newUsageError(fmt.Sprintf("expected between %d and %d argument(s): %v", min, len(names), names))
	}
	return nil
}
