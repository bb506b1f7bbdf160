package scanner

import (
	"io"
	"sync"
	"time"
)

// ScanOptions defines the options for registering a folder of references
type ScanOptions struct {
	FolderPath   string
	Group        string
	ForceRewrite bool
	DebugMode    bool
	MaxWorkers   int       // Optional worker limit
	Progress     io.Writer // Progress output, nil for none
}

// ProcessResult holds the result of registering one file
type ProcessResult struct {
	Path     string
	Success  bool
	Skipped  bool
	IsTiff   bool
	IsRender bool
	Error    error
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
	tifFiles   int
}

// ScanSummary reports the outcome of a folder registration
type ScanSummary struct {
	Processed int
	Skipped   int
	Rendered  int
	Errors    int
	Elapsed   time.Duration
}

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	processed    int
	skipped      int
	rendered     int
	errors       int
	tifProcessed int
	tifErrors    int
	ticker       *time.Ticker
	done         chan struct{}
	finished     chan struct{}
	mu           sync.Mutex
	out          io.Writer
	totalFiles   int
	tifFiles     int
}
