package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // All artifacts passed
	ExitEvalFailed = 1 // One or more artifacts failed or errored (CI mode)
	ExitError      = 2 // Configuration or runtime error
)

// EvalFailureError indicates that the batch ran to completion, but one or
// more artifacts failed their threshold or errored.
type EvalFailureError struct {
	Message string
}

func (e *EvalFailureError) Error() string {
	return e.Message
}

// exitCodeFor separates "the batch ran and some artifacts failed" from "the
// run itself broke", so CI pipelines can tell the two apart.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var evalErr *EvalFailureError
	if errors.As(err, &evalErr) {
		return ExitEvalFailed
	}
	return ExitError
}

func main() {
	err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if code := exitCodeFor(err); code != ExitSuccess {
		os.Exit(code)
	}
}
