package scanner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
)

// NewProgressTracker starts consuming results. Progress lines go to out
// when it is not nil.
func NewProgressTracker(stats FileStats, resultsChan <-chan ProcessResult, out io.Writer) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		out:        out,
		totalFiles: stats.totalFiles,
		tifFiles:   stats.tifFiles,
	}

	go tracker.displayProgress()
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			if p.out == nil {
				continue
			}
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Errors: %d, Skipped: %d, TIF: %d/%d)",
					p.processed, p.totalFiles, p.errors, p.skipped, p.tifProcessed, p.tifFiles)
			} else {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Skipped: %d, TIF: %d/%d)",
					p.processed, p.totalFiles, p.skipped, p.tifProcessed, p.tifFiles)
			}
			p.mu.Unlock()
		}
	}
}

// processResults updates the tracker state until resultsChan is closed
func (p *ProgressTracker) processResults(resultsChan <-chan ProcessResult) {
	defer close(p.finished)

	for result := range resultsChan {
		p.mu.Lock()
		p.processed++

		if result.IsTiff {
			p.tifProcessed++
		}

		switch {
		case !result.Success:
			p.errors++
			if result.IsTiff {
				p.tifErrors++
			}
			errMsg := ""
			if result.Error != nil {
				errMsg = result.Error.Error()
			}
			logging.LogReferenceProcessed(result.Path, false, errMsg)
		case result.Skipped:
			p.skipped++
		default:
			if result.IsRender {
				p.rendered++
			}
			logging.LogReferenceProcessed(result.Path, true, "")
		}

		p.mu.Unlock()
	}
}

// Stop waits for every result to be counted and ends the display loop.
// The results channel must be closed first.
func (p *ProgressTracker) Stop() {
	<-p.finished
	p.ticker.Stop()
	close(p.done)
}

// Summary returns the counters collected so far.
func (p *ProgressTracker) Summary() ScanSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ScanSummary{
		Processed: p.processed,
		Skipped:   p.skipped,
		Rendered:  p.rendered,
		Errors:    p.errors,
	}
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(w io.Writer, stats FileStats, options ScanOptions) {
	fmt.Fprintf(w, "Registering reference patterns...\nTotal image files to process: %d (including %d TIF files)\n",
		stats.totalFiles, stats.tifFiles)
	fmt.Fprintf(w, "Force rewrite mode: %v\n", options.ForceRewrite)

	if options.Group != "" {
		fmt.Fprintf(w, "Group: %s\n", options.Group)
	}

	if options.DebugMode {
		fmt.Fprintf(w, "Debug mode: enabled\n")
		logging.DebugLog("Found %d image files to process (%d TIF files), supported extensions: %s",
			stats.totalFiles, stats.tifFiles, strings.Join(imageprocessor.GetSupportedExtensions(), " "))
	}
}

// PrintCompletionStats displays statistics after scan completion
func PrintCompletionStats(w io.Writer, summary ScanSummary, options ScanOptions) {
	if options.DebugMode {
		logging.DebugLog("Registration completed in %v. Processed: %d, Skipped: %d, Rendered: %d, Errors: %d",
			summary.Elapsed, summary.Processed, summary.Skipped, summary.Rendered, summary.Errors)
	}

	fmt.Fprintln(w, "\nRegistration complete.")
	fmt.Fprintf(w, "Processed %d images in %v (%d unchanged, %d digital renders).\n",
		summary.Processed, summary.Elapsed.Round(time.Second), summary.Skipped, summary.Rendered)

	if summary.Errors > 0 {
		fmt.Fprintf(w, "Encountered %d errors during registration.\n", summary.Errors)
		fmt.Fprintln(w, "Check the log file for details.")
	}
}
