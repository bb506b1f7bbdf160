package scanner

import (
	"os"
	"path/filepath"

	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
)

// isTiffFormat checks if a file is in TIF format
func isTiffFormat(path string) bool {
	return imageprocessor.GetFileFormat(path) == imageprocessor.FormatTIFF
}

// collectFiles walks folder and returns the supported image files in walk
// order with their counts.
func collectFiles(folder string, debug bool) ([]string, FileStats, error) {
	var (
		files []string
		stats FileStats
	)

	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if debug {
				logging.LogWarning("Cannot access %s: %v", path, err)
			}
			return nil
		}
		if info.IsDir() || !imageprocessor.IsImageFile(path) {
			return nil
		}

		files = append(files, path)
		stats.totalFiles++
		if isTiffFormat(path) {
			stats.tifFiles++
		}
		return nil
	})

	return files, stats, err
}
