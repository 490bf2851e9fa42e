package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/i2y/marengo/llm"
)

// ShellInput defines the input for the run_shell tool.
type ShellInput struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to execute"`
	Dir     string `json:"dir,omitempty" jsonschema:"description=Working directory for the command"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"description=Timeout in seconds (default: 30)"`
}

// ShellOutput defines the output of the run_shell tool.
type ShellOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ShellTool returns the run_shell tool.
func ShellTool() (llm.Tool, error) {
	return llm.NewTool(
		"run_shell",
		"Run a shell command and return stdout, stderr, and exit code.",
		runShell,
	)
}

// MustShell returns the run_shell tool, panicking on error.
func MustShell() llm.Tool {
	tool, err := ShellTool()
	if err != nil {
		panic(err)
	}
	return tool
}

func runShell(ctx context.Context, input ShellInput) (ShellOutput, error) {
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", "-c", input.Command)

	if input.Dir != "" {
		cmd.Dir = input.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if execCtx.Err() == context.DeadlineExceeded {
			return ShellOutput{
				Stdout:   stdout.String(),
				Stderr:   fmt.Sprintf("command timed out after %d seconds", timeout),
				ExitCode: -1,
			}, nil
		} else {
			return ShellOutput{}, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return ShellOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
