package indexer

import (
	"time"
)

// ScanBatchSize is the number of files extracted before the scan checks for
// cancellation and reports progress.
const ScanBatchSize = 50

// Edge is a directed import: Importer's text contains a specifier that
// resolves to Target.
type Edge struct {
	Importer string `json:"importer"`
	Target   string `json:"target"`
}

// GraphStats summarizes a reference graph.
type GraphStats struct {
	// Importers is the number of files with at least one outgoing edge
	Importers int

	// Targets is the number of paths referenced by at least one file
	Targets int

	// Edges is the total number of distinct edges
	Edges int
}

// ScanOptions configures a workspace scan.
type ScanOptions struct {
	// Include patterns (glob syntax, relative to the root)
	// Default: ["**/*.ts", "**/*.tsx"]
	Include []string

	// Exclude patterns (glob syntax)
	// node_modules, jspm_packages and typings are always excluded
	Exclude []string

	// MaxWorkers is the worker pool size (0 = auto-detect)
	MaxWorkers int

	// RelativeToTsconfig is passed through to the resolver
	RelativeToTsconfig bool

	// Extensions are the source extensions probed and stripped
	// Default: [".ts", ".tsx"]
	Extensions []string
}

// DefaultScanOptions returns options for a plain TypeScript workspace.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include:    []string{"**/*.ts", "**/*.tsx"},
		Extensions: []string{".ts", ".tsx"},
	}
}

// ScanStats contains statistics from a workspace scan.
type ScanStats struct {
	// FilesDiscovered is the total number of files found
	FilesDiscovered int

	// FilesIndexed is the number of files successfully indexed
	FilesIndexed int

	// FilesFailed is the number of files that failed to read or parse
	FilesFailed int

	// SpecifiersExtracted is the total number of specifier occurrences
	SpecifiersExtracted int

	// EdgesResolved is the number of occurrences that became graph edges
	EdgesResolved int

	// Unresolved is the number of occurrences that did not resolve
	Unresolved int

	// TotalTimeMs is the total scan duration in milliseconds
	TotalTimeMs int64

	// WorkerCount is the number of workers used
	WorkerCount int

	// Errors contains per-file errors (if any)
	Errors []FileError

	// Cancelled indicates if the scan was cancelled
	Cancelled bool

	StartTime time.Time
	EndTime   time.Time
}

// FileError represents an error that occurred while processing a file.
type FileError struct {
	FilePath string
	JobID    int
	Error    error
}

// ProgressCallback is called after every scan batch.
//
// Parameters:
//   - indexed: Number of files processed so far
//   - total: Total number of files to index
//   - currentFile: Last file of the batch
type ProgressCallback func(indexed, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// Debounce is the quiet period before queued paths are rescanned
	// Default: 250ms
	Debounce time.Duration

	// IgnorePatterns are base-name globs to ignore (editor swap files)
	IgnorePatterns []string
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce: DefaultDebounce,
		IgnorePatterns: []string{
			"*.swp",
			"*.tmp",
			"*~",
		},
	}
}
