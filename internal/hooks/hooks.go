package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// Hook defines a single hook command.
type Hook struct {
	Command          string `yaml:"command" json:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
}

// Config holds all lifecycle hooks.
type Config struct {
	BeforeBatch    []Hook `yaml:"before_batch,omitempty" json:"before_batch,omitempty"`
	AfterBatch     []Hook `yaml:"after_batch,omitempty" json:"after_batch,omitempty"`
	BeforeArtifact []Hook `yaml:"before_artifact,omitempty" json:"before_artifact,omitempty"`
	AfterArtifact  []Hook `yaml:"after_artifact,omitempty" json:"after_artifact,omitempty"`
}

// Any reports whether any lifecycle point has hooks configured.
func (c Config) Any() bool {
	return len(c.BeforeBatch) > 0 || len(c.AfterBatch) > 0 ||
		len(c.BeforeArtifact) > 0 || len(c.AfterArtifact) > 0
}

// Runner executes hook commands at lifecycle points.
type Runner struct {
	Verbose bool
}

// Execute runs all hooks for a given lifecycle point. name identifies the
// point (e.g. "before_batch") for logging and error context; env holds extra
// KEY=VALUE pairs appended to the hook's environment, such as
// PROMPTEVAL_ARTIFACT for per-artifact hooks.
func (r *Runner) Execute(ctx context.Context, name string, hooks []Hook, env ...string) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: context canceled: %w", name, err)
		}

		if err := r.runHook(ctx, name, i, h, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, name string, index int, h Hook, env []string) error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("hook %s[%d]: empty command", name, index)
	}

	parts := strings.Fields(h.Command)
	//nolint:gosec // hook commands come from the suite's own YAML, not untrusted input
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = h.WorkingDirectory
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	output, runErr := cmd.CombinedOutput()
	if r.Verbose && len(output) > 0 {
		fmt.Printf("[hook:%s] %s\n", name, output)
	}

	if runErr == nil {
		return r.checkExit(name, index, h, 0)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return r.checkExit(name, index, h, exitErr.ExitCode())
	}

	// The command never ran (e.g. not found).
	if h.ErrorOnFail {
		return fmt.Errorf("hook %s[%d]: %w", name, index, runErr)
	}
	fmt.Printf("[WARN] hook %s[%d] failed: %v (continuing)\n", name, index, runErr)
	return nil
}

// checkExit validates code against the hook's accepted exit codes. An empty
// list accepts only zero.
func (r *Runner) checkExit(name string, index int, h Hook, code int) error {
	accepted := h.ExitCodes
	if len(accepted) == 0 {
		accepted = []int{0}
	}
	if slices.Contains(accepted, code) {
		return nil
	}

	if h.ErrorOnFail {
		return fmt.Errorf("hook %s[%d]: exit code %d, want one of %v", name, index, code, accepted)
	}
	fmt.Printf("[WARN] hook %s[%d]: exit code %d, want one of %v (continuing)\n", name, index, code, accepted)
	return nil
}
