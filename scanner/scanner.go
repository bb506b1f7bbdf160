package scanner

import (
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"lcdmatch/database"
	"lcdmatch/logging"
	"lcdmatch/scanner/processor"
	"lcdmatch/signalhandler"
)

// RegisterFolder walks a folder and stores every supported image in the
// reference catalogue. Files are checked against the catalogue in
// parallel; decoding and measuring is serialized by the describer.
func RegisterFolder(db *sql.DB, describer processor.Describer, options ScanOptions) (ScanSummary, error) {
	files, stats, err := collectFiles(options.FolderPath, options.DebugMode)
	if err != nil {
		return ScanSummary{}, fmt.Errorf("cannot walk %s: %w", options.FolderPath, err)
	}

	if options.DebugMode {
		logging.DebugLog("Starting reference registration on folder: %s", options.FolderPath)
		logging.DebugLog("Force rewrite: %v, Group: %s", options.ForceRewrite, options.Group)
	}

	out := options.Progress
	if out == nil {
		out = io.Discard
	}
	PrintStartupInfo(out, stats, options)

	workers := options.MaxWorkers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessResult, 100)
	semaphore := make(chan struct{}, workers)
	tracker := NewProgressTracker(stats, resultsChan, options.Progress)
	proc := processor.NewReferenceProcessor(describer, options.DebugMode)

	startTime := time.Now()
	for _, path := range files {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resultsChan <- processAndStoreReference(db, proc, p, options)
		}(path)
	}

	wg.Wait()
	close(resultsChan)
	tracker.Stop()

	summary := tracker.Summary()
	summary.Elapsed = time.Since(startTime)
	PrintCompletionStats(out, summary, options)

	return summary, nil
}

// processAndStoreReference registers a single file
func processAndStoreReference(db *sql.DB, proc *processor.ReferenceProcessor, path string, options ScanOptions) ProcessResult {
	result := ProcessResult{
		Path:   path,
		IsTiff: isTiffFormat(path),
	}

	if !options.ForceRewrite {
		if skipResult := checkAndSkipIfUnchanged(db, path, options); skipResult != nil {
			return *skipResult
		}
	}

	info, err := proc.ProcessReference(path, options.Group)
	if err != nil {
		result.Error = err
		return result
	}

	// A changed file replaces its stale row even without --force
	if err := database.StoreReference(db, info, true); err != nil {
		result.Error = fmt.Errorf("cannot store data for %s: %w", path, err)
		return result
	}

	result.Success = true
	result.IsRender = info.IsRender
	return result
}
