package comparator

import (
	"database/sql"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"
	"time"

	"lcdmatch/database"
	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
	"lcdmatch/types"
)

// SearchOptions defines the options for matching a capture against the
// reference catalogue
type SearchOptions struct {
	Query           image.Image
	Group           string
	Threshold       float64 // minimum score in [0,100]
	MaxHashDistance int     // fingerprint prefilter, 64 or more disables it
	Workers         int
	DebugMode       bool
}

// FindMatchingReferences compares the query with every catalogued
// reference whose fingerprints are close enough and returns those scoring
// at least the threshold, best first.
func (c *Comparator) FindMatchingReferences(db *sql.DB, options SearchOptions) ([]types.ReferenceMatch, error) {
	refs, err := database.ListReferences(db, options.Group)
	if err != nil {
		return nil, err
	}

	avgHash, pHash, err := c.Fingerprint(options.Query)
	if err != nil {
		return nil, fmt.Errorf("cannot fingerprint query image: %w", err)
	}

	if options.DebugMode {
		logging.DebugLog("Searching %d references, threshold %.1f, group %q, query aHash %016x pHash %016x",
			len(refs), options.Threshold, options.Group, avgHash, pHash)
	}

	workers := options.Workers
	if workers <= 0 {
		workers = 4
	}

	var (
		matches   []types.ReferenceMatch
		wg        sync.WaitGroup
		mutex     sync.Mutex
		semaphore = make(chan struct{}, workers)
		compared  int
		startTime = time.Now()
	)

	for _, ref := range refs {
		if options.MaxHashDistance < 64 {
			avgDist := imageprocessor.HashDistance(avgHash, ref.AverageHash)
			pDist := imageprocessor.HashDistance(pHash, ref.PerceptualHash)
			if avgDist > options.MaxHashDistance && pDist > options.MaxHashDistance {
				if options.DebugMode {
					logging.DebugLog("Skipping %s (aHash dist %d, pHash dist %d)", ref.Path, avgDist, pDist)
				}
				continue
			}
		}

		compared++
		wg.Add(1)
		semaphore <- struct{}{}

		go func(ref types.ReferenceInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := os.Stat(ref.Path); err != nil {
				logging.LogWarning("Reference %s is no longer readable: %v", ref.Path, err)
				return
			}

			refImg, err := imageprocessor.LoadColorImage(ref.Path)
			if err != nil {
				logging.LogWarning("Failed to load reference %s: %v", ref.Path, err)
				return
			}

			result := c.CompareImages(options.Query, refImg)
			if options.DebugMode {
				logging.DebugLog("Compared with %s: score %.2f, matches %d, error %q",
					ref.Path, result.Score, result.Matches, result.Error)
			}
			if result.Degraded() || result.Score < options.Threshold {
				return
			}

			mutex.Lock()
			matches = append(matches, types.ReferenceMatch{
				Name:   ref.Name,
				Path:   ref.Path,
				Group:  ref.Group,
				Result: result,
			})
			mutex.Unlock()
		}(ref)
	}

	wg.Wait()

	if options.DebugMode {
		logging.DebugLog("Search completed in %v. Compared: %d, Matches found: %d",
			time.Since(startTime), compared, len(matches))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Result.Score != matches[j].Result.Score {
			return matches[i].Result.Score > matches[j].Result.Score
		}
		return matches[i].Path < matches[j].Path
	})

	return matches, nil
}
