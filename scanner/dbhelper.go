package scanner

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"lcdmatch/database"
	"lcdmatch/logging"
)

// checkAndSkipIfUnchanged returns a result when the file is already
// registered in the group and has not been modified since.
func checkAndSkipIfUnchanged(db *sql.DB, path string, options ScanOptions) *ProcessResult {
	exists, storedModTime, err := database.CheckReferenceExists(db, path, options.Group)
	if err != nil {
		return &ProcessResult{
			Path:  path,
			Error: err,
		}
	}

	if !exists {
		return nil
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return &ProcessResult{
			Path:  path,
			Error: fmt.Errorf("cannot stat file %s: %w", path, err),
		}
	}

	storedTime, err := time.Parse(time.RFC3339, storedModTime)
	if err != nil {
		return &ProcessResult{
			Path:  path,
			Error: fmt.Errorf("cannot parse stored time for %s: %w", path, err),
		}
	}

	if fileInfo.ModTime().Truncate(time.Second).After(storedTime) {
		return nil
	}

	if options.DebugMode {
		logging.DebugLog("Skipping unchanged reference: %s", path)
	}
	return &ProcessResult{
		Path:    path,
		Success: true,
		Skipped: true,
		IsTiff:  isTiffFormat(path),
	}
}
