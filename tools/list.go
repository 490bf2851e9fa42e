package tools

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/i2y/marengo/llm"
)

// ListFilesInput defines the input for the list_files tool.
type ListFilesInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern (e.g. **/*.go for all Go files)"`
	Dir     string `json:"dir,omitempty" jsonschema:"description=Base directory to search from (default: current directory)"`
}

// ListFilesOutput defines the output of the list_files tool.
type ListFilesOutput struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// ListFilesTool returns the list_files tool.
func ListFilesTool() (llm.Tool, error) {
	return llm.NewTool(
		"list_files",
		"Find files matching a glob pattern. Supports ** for recursive matching.",
		listFiles,
	)
}

// MustListFiles returns the list_files tool, panicking on error.
func MustListFiles() llm.Tool {
	tool, err := ListFilesTool()
	if err != nil {
		panic(err)
	}
	return tool
}

func listFiles(ctx context.Context, input ListFilesInput) (ListFilesOutput, error) {
	baseDir := input.Dir
	if baseDir == "" {
		baseDir = "."
	}
	baseDir = filepath.Clean(baseDir)

	fsys := os.DirFS(baseDir)
	matches, err := doublestar.Glob(fsys, input.Pattern)
	if err != nil {
		return ListFilesOutput{}, err
	}

	// Prepend base directory to results if not current directory
	if baseDir != "." {
		for i, m := range matches {
			matches[i] = filepath.Join(baseDir, m)
		}
	}

	return ListFilesOutput{
		Files: matches,
		Count: len(matches),
	}, nil
}
