// Package tools provides ready-made typed tools for the tool catalog.
package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/i2y/marengo/llm"
)

// ReadFileInput defines the input for the read_file tool.
type ReadFileInput struct {
	Path   string `json:"path" jsonschema:"required,description=File path to read"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Line offset to start from (0-based)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Max lines to read (default: 0 = all)"`
}

// ReadFileOutput defines the output of the read_file tool.
type ReadFileOutput struct {
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

// ReadFileTool returns the read_file tool.
func ReadFileTool() (llm.Tool, error) {
	return llm.NewTool(
		"read_file",
		"Read the contents of a file. Supports reading specific line ranges.",
		readFileLines,
	)
}

// MustReadFile returns the read_file tool, panicking on error.
func MustReadFile() llm.Tool {
	tool, err := ReadFileTool()
	if err != nil {
		panic(err)
	}
	return tool
}

func readFileLines(ctx context.Context, input ReadFileInput) (ReadFileOutput, error) {
	file, err := os.Open(input.Path)
	if err != nil {
		return ReadFileOutput{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	var lines []string
	lineNum := 0
	truncated := false

	for scanner.Scan() {
		// Skip lines before offset
		if lineNum < input.Offset {
			lineNum++
			continue
		}

		// Check limit
		if input.Limit > 0 && len(lines) >= input.Limit {
			truncated = true
			break
		}

		lines = append(lines, scanner.Text())
		lineNum++
	}

	if err := scanner.Err(); err != nil {
		return ReadFileOutput{}, fmt.Errorf("failed to read file: %w", err)
	}

	return ReadFileOutput{
		Content:   strings.Join(lines, "\n"),
		Lines:     len(lines),
		Truncated: truncated,
	}, nil
}
