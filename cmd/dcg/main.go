// Command dcg is the destructive command guard: a pre-execution
// interceptor that classifies a shell command as allow or deny before
// an AI coding assistant or a pre-commit hook lets it run.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dcg-tools/dcg/internal/cli"
	"github.com/dcg-tools/dcg/internal/dcgerr"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dcg:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to spec §6/§7's process exit codes: 2 for a
// configuration problem, 1 for anything else (malformed input,
// runtime failure). A successfully written deny verdict never reaches
// here — it returns nil from the command.
func exitCode(err error) int {
	var dcgErr *dcgerr.Error
	if errors.As(err, &dcgErr) && dcgErr.Category == dcgerr.CategoryConfig {
		return 2
	}
	return 1
}
