package processor

import (
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"

	"lcdmatch/logging"
	"lcdmatch/types"
)

// Describer loads a reference file and measures it. comparator.Comparator
// is the production implementation.
type Describer interface {
	Describe(path string) (types.ReferenceInfo, error)
}

// ReferenceProcessor is an adapter that simplifies interactions between the
// scanner and the comparator
type ReferenceProcessor struct {
	DebugMode bool
	describer Describer
}

// NewReferenceProcessor creates a new ReferenceProcessor
func NewReferenceProcessor(describer Describer, debugMode bool) *ReferenceProcessor {
	return &ReferenceProcessor{
		DebugMode: debugMode,
		describer: describer,
	}
}

// ProcessReference measures a file and labels it with its catalogue name
// and group. Panics raised while decoding are returned as errors.
func (p *ReferenceProcessor) ProcessReference(path string, group string) (info types.ReferenceInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := debug.Stack()
			err = fmt.Errorf("panic during reference loading: %v", r)
			logging.LogError("Panic during reference loading: %v, file: %s\nStack trace: %s", r, path, string(stackTrace))
			info = types.ReferenceInfo{}
		}
	}()

	info, err = p.describer.Describe(path)
	if err != nil {
		return types.ReferenceInfo{}, fmt.Errorf("failed to load reference %s: %w", path, err)
	}

	info.Name = ReferenceName(path)
	info.Group = group

	if p.DebugMode {
		logging.DebugLog("Loaded %s reference %s (%dx%d, render=%v, aHash=%016x, pHash=%016x)",
			info.Format, path, info.Width, info.Height, info.IsRender, info.AverageHash, info.PerceptualHash)
	}

	return info, nil
}

// ReferenceName derives a catalogue name from a file name: the base name
// without its extension.
func ReferenceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
