package tools

import "github.com/i2y/marengo/llm"

// AllTools returns all built-in tools.
func AllTools() []llm.Tool {
	return []llm.Tool{
		MustReadFile(),
		MustWriteFile(),
		MustListFiles(),
		MustShell(),
	}
}

// FileTools returns file-related tools only.
// Includes: read_file, write_file, list_files
func FileTools() []llm.Tool {
	return []llm.Tool{
		MustReadFile(),
		MustWriteFile(),
		MustListFiles(),
	}
}

// ReadOnlyTools returns tools that don't modify the filesystem.
// Includes: read_file, list_files
func ReadOnlyTools() []llm.Tool {
	return []llm.Tool{
		MustReadFile(),
		MustListFiles(),
	}
}

// ShellTools returns tools that run commands.
// Includes: run_shell
func ShellTools() []llm.Tool {
	return []llm.Tool{
		MustShell(),
	}
}
