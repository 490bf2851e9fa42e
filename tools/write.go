package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i2y/marengo/llm"
)

// WriteFileInput defines the input for the write_file tool.
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=File path to write"`
	Content string `json:"content" jsonschema:"required,description=Content to write to the file"`
}

// WriteFileOutput defines the output of the write_file tool.
type WriteFileOutput struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
}

// WriteFileTool returns the write_file tool.
func WriteFileTool() (llm.Tool, error) {
	return llm.NewTool(
		"write_file",
		"Write content to a file. Creates parent directories if needed.",
		writeFileContent,
	)
}

// MustWriteFile returns the write_file tool, panicking on error.
func MustWriteFile() llm.Tool {
	tool, err := WriteFileTool()
	if err != nil {
		panic(err)
	}
	return tool
}

func writeFileContent(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
	// Create parent directories if needed
	dir := filepath.Dir(input.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WriteFileOutput{}, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write the file
	data := []byte(input.Content)
	if err := os.WriteFile(input.Path, data, 0o644); err != nil {
		return WriteFileOutput{}, fmt.Errorf("failed to write file: %w", err)
	}

	return WriteFileOutput{
		Success: true,
		Path:    input.Path,
		Bytes:   len(data),
	}, nil
}
